// Package semmutex provides named mutexes shared between independent
// processes of one application deployment, built on operating system
// semaphores, without any in-process threading requirement.
//
// Processes agree on which objects they share through an IPC key derived
// from a filesystem path (typically the application's configuration file,
// falling back to the current directory), so no names need to be passed
// around.
//
// # Mutex Sets
//
// A MutexSet is a fixed number of anonymous mutex slots. The first process to
// call Create makes the set and initializes every slot; processes that lose
// that race attach to the set and wait, for a bounded number of polls, until
// the creator has finished:
//
//	set := semmutex.NewMutexSet(semmutex.Options{KeyPath: "/etc/app.conf"})
//
//	history, err := set.Create(3, "history")
//	if err != nil {
//		return err
//	}
//
//	history.Lock()
//	// critical section - access shared resource
//	history.Unlock()
//
// Destroying a handle removes the whole set for every process, so it is done
// once, at teardown, by the process responsible for it.
//
// # Refcounted Semaphores
//
// A RefSemaphore is a gate keyed by any path, with a usage count of attached
// processes. The first user sets the gate capacity and the last one to
// Remove deletes it:
//
//	sem, err := semmutex.GetRefSemaphore("/var/lib/app/db.sqlite", semmutex.Options{})
//	if err != nil {
//		return err
//	}
//	defer sem.Remove()
//
//	sem.Acquire()
//	// critical section
//	sem.Release()
//
// The kernel undoes the usage count and any held gate of a process that dies,
// so a crash does not wedge the others.
//
// # Shared Resources
//
// SharedMemory is a shared memory segment keyed the same way, and
// SharedRecord is a MessagePack-encoded value in a data file; both are meant
// to be accessed under one of the locks above.
//
// # Platforms
//
// On Linux (64-bit) mutex sets and refcounted semaphores are System V
// semaphore arrays. On Windows each slot is a named kernel mutex; the kernel
// mutex is owned by a thread, so Lock and Unlock must be called from the same
// goroutine, which stays pinned to its thread in between. Elsewhere every
// operation fails with ErrUnsupported; see Supported.
//
// # Diagnostics
//
// Every failure is handed to Options.Reporter before it is returned. The
// default reporter logs through zerolog's global logger.
package semmutex
