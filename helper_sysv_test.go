//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package semmutex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const testCount = 4

type counterRecord struct {
	Value uint64 `msgpack:"value"`
}

func helperOptions(keyPath string) Options {
	return Options{
		KeyPath:       keyPath,
		Count:         testCount,
		MaxTries:      500,
		RetryInterval: 10 * time.Millisecond,
		Reporter:      NopReporter{},
	}
}

// runHelper is the body of a peer process. It prints its results on stdout
// and blocks on stdin where the parent needs it alive.
func runHelper(mode string) int {
	keyPath := os.Getenv("SEMMUTEX_KEY_PATH")
	opts := helperOptions(keyPath)

	switch mode {
	case "create":
		set := NewMutexSet(opts)
		if _, err := set.Create(1, "race"); err != nil {
			fmt.Println(err)
			return 1
		}
		fmt.Printf("created=%t\n", set.Created())

	case "counter":
		times, _ := strconv.Atoi(os.Getenv("SEMMUTEX_TIMES"))
		set := NewMutexSet(opts)
		mu, err := set.Create(2, "counter")
		if err != nil {
			fmt.Println(err)
			return 1
		}
		shm, err := CreateSharedMemory(keyPath, 8, opts)
		if err != nil {
			fmt.Println(err)
			return 1
		}
		defer shm.Close()
		words := shm.GetUint64Slice(0)
		rec := NewSharedRecord[counterRecord](afero.NewOsFs(), os.Getenv("SEMMUTEX_RECORD"), mu)
		for i := 0; i < times; i++ {
			if err := mu.Lock(); err != nil {
				fmt.Println(err)
				return 1
			}
			v := words[0]
			runtime.Gosched()
			words[0] = v + 1
			if err := mu.Unlock(); err != nil {
				fmt.Println(err)
				return 1
			}
			if err := rec.Update(func(c *counterRecord) error {
				c.Value++
				return nil
			}); err != nil {
				fmt.Println(err)
				return 1
			}
		}

	case "refget":
		sem, err := GetRefSemaphore(keyPath, opts)
		if err != nil {
			fmt.Println(err)
			return 1
		}
		fmt.Printf("initialized=%t\n", sem.Initialized())
		_, _ = io.Copy(io.Discard, os.Stdin)

	case "refhold":
		sem, err := GetRefSemaphore(keyPath, opts)
		if err != nil {
			fmt.Println(err)
			return 1
		}
		if err := sem.Acquire(); err != nil {
			fmt.Println(err)
			return 1
		}
		fmt.Println("acquired")
		_, _ = io.Copy(io.Discard, os.Stdin)

	case "lockintr":
		set := NewMutexSet(opts)
		mu, err := set.Create(0, "held")
		if err != nil {
			fmt.Println(err)
			return 1
		}
		signal.Notify(make(chan os.Signal, 1), unix.SIGUSR1)
		runtime.LockOSThread()
		fmt.Printf("tid=%d\n", unix.Gettid())
		err = mu.Lock()
		fmt.Printf("eintr=%t operation=%t\n", errors.Is(err, unix.EINTR), errors.Is(err, ErrOperation))

	case "acquireintr":
		sem, err := GetRefSemaphore(keyPath, opts)
		if err != nil {
			fmt.Println(err)
			return 1
		}
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, unix.SIGUSR1)
		go func() {
			<-sigs
			fmt.Println("signaled")
		}()
		runtime.LockOSThread()
		fmt.Printf("tid=%d\n", unix.Gettid())
		if err := sem.Acquire(); err != nil {
			fmt.Println(err)
			return 1
		}
		fmt.Println("acquired")
		if err := sem.Release(); err != nil {
			fmt.Println(err)
			return 1
		}

	default:
		fmt.Printf("unknown helper mode %q\n", mode)
		return 2
	}
	return 0
}

func helperCmd(mode, keyPath string, env ...string) *exec.Cmd {
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	cmd.Env = append(os.Environ(), helperEnv+"="+mode, "SEMMUTEX_KEY_PATH="+keyPath)
	cmd.Env = append(cmd.Env, env...)
	return cmd
}

// peer is a helper process the test keeps alive through its stdin.
type peer struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Reader
}

func startPeer(t *testing.T, mode, keyPath string) *peer {
	t.Helper()
	cmd := helperCmd(mode, keyPath)
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	p := &peer{cmd: cmd, stdin: stdin, out: bufio.NewReader(stdout)}
	t.Cleanup(func() {
		_ = p.stdin.Close()
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	})
	return p
}

func (p *peer) line(t *testing.T) string {
	t.Helper()
	s, err := p.out.ReadString('\n')
	require.NoError(t, err)
	return s[:len(s)-1]
}

// tid reads the thread id line a peer prints before it blocks.
func (p *peer) tid(t *testing.T) int {
	t.Helper()
	line := p.line(t)
	require.True(t, strings.HasPrefix(line, "tid="), line)
	tid, err := strconv.Atoi(strings.TrimPrefix(line, "tid="))
	require.NoError(t, err)
	return tid
}

// interrupt delivers SIGUSR1 to the peer's thread tid.
func (p *peer) interrupt(t *testing.T, tid int) {
	t.Helper()
	require.NoError(t, unix.Tgkill(p.cmd.Process.Pid, tid, unix.SIGUSR1))
}

// stop closes the peer's stdin and waits for it to exit cleanly.
func (p *peer) stop(t *testing.T) {
	t.Helper()
	require.NoError(t, p.stdin.Close())
	require.NoError(t, p.cmd.Wait())
}

// newKeyPath returns a fresh file to derive keys from, and removes any
// semaphore left under its key by an earlier run, before and after the test.
func newKeyPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	key, err := DeriveKey(path, DefaultTag)
	require.NoError(t, err)
	purge := func() {
		if id, err := semget(key, 0, 0); err == nil {
			_ = semrm(id)
		}
	}
	purge()
	t.Cleanup(purge)
	return path
}
