package semmutex

import (
	"os"

	"github.com/juju/errors"
	"github.com/spf13/afero"
)

// SharedRecord is a value of type T stored in a data file that several
// processes read and rewrite, serialized by a Locker. A missing file reads
// as the zero T.
//
// Example:
//
//	type stats struct{ Runs int }
//
//	rec := semmutex.NewSharedRecord[stats](afero.NewOsFs(), "/var/lib/app/stats", mu)
//	err := rec.Update(func(s *stats) error {
//		s.Runs++
//		return nil
//	})
type SharedRecord[T any] struct {
	fs    afero.Fs
	path  string
	lock  Locker
	codec Serializer
	perm  os.FileMode
}

// NewSharedRecord returns a record stored at path on fs, guarded by lock and
// encoded with MessagePack.
func NewSharedRecord[T any](fs afero.Fs, path string, lock Locker) *SharedRecord[T] {
	return &SharedRecord[T]{
		fs:    fs,
		path:  path,
		lock:  lock,
		codec: MsgpackSerializer{},
		perm:  0o644,
	}
}

// WithSerializer replaces the record's codec.
func (r *SharedRecord[T]) WithSerializer(s Serializer) *SharedRecord[T] {
	r.codec = s
	return r
}

// Load reads the record under the lock.
func (r *SharedRecord[T]) Load() (v T, err error) {
	if err := r.lock.Lock(); err != nil {
		return v, errors.Annotatef(err, "locking record %q", r.path)
	}
	defer func() {
		if uerr := r.lock.Unlock(); uerr != nil && err == nil {
			err = errors.Annotatef(uerr, "unlocking record %q", r.path)
		}
	}()
	return r.read()
}

// Update reads the record, applies fn and writes the result back, all under
// the lock. Nothing is written when fn fails.
func (r *SharedRecord[T]) Update(fn func(*T) error) (err error) {
	if err := r.lock.Lock(); err != nil {
		return errors.Annotatef(err, "locking record %q", r.path)
	}
	defer func() {
		if uerr := r.lock.Unlock(); uerr != nil && err == nil {
			err = errors.Annotatef(uerr, "unlocking record %q", r.path)
		}
	}()

	v, err := r.read()
	if err != nil {
		return err
	}
	if err := fn(&v); err != nil {
		return errors.Trace(err)
	}
	return r.write(&v)
}

func (r *SharedRecord[T]) read() (T, error) {
	var v T
	data, err := afero.ReadFile(r.fs, r.path)
	if os.IsNotExist(err) {
		return v, nil
	}
	if err != nil {
		return v, errors.Annotatef(err, "reading record %q", r.path)
	}
	if len(data) == 0 {
		return v, nil
	}
	if err := r.codec.Unmarshal(data, &v); err != nil {
		return v, errors.Annotatef(err, "decoding record %q", r.path)
	}
	return v, nil
}

// write replaces the file through a rename so readers never see a partial
// record, even ones that skip the lock.
func (r *SharedRecord[T]) write(v *T) error {
	data, err := r.codec.Marshal(v)
	if err != nil {
		return errors.Annotatef(err, "encoding record %q", r.path)
	}
	tmp := r.path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, r.perm); err != nil {
		return errors.Annotatef(err, "writing record %q", tmp)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		return errors.Annotatef(err, "replacing record %q", r.path)
	}
	return nil
}
