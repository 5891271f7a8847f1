package main

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/richinsley/semmutex"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// semCmd represents the refcounted semaphore command group
	semCmd = &cobra.Command{
		Use:   "sem",
		Short: "Operate on a refcounted semaphore",
	}

	semStatCmd = &cobra.Command{
		Use:   "stat [path]",
		Short: "Show the gate value and usage count",
		Args:  cobra.ExactArgs(1),
		RunE:  runSemStat,
	}

	semHoldCmd = &cobra.Command{
		Use:   "hold [path]",
		Short: "Attach, acquire the gate and hold it until SIGINT or SIGTERM",
		Args:  cobra.ExactArgs(1),
		RunE:  runSemHold,
	}

	semRemoveCmd = &cobra.Command{
		Use:   "remove [path]",
		Short: "Attach and remove, deleting the semaphore when no other process uses it",
		Args:  cobra.ExactArgs(1),
		RunE:  runSemRemove,
	}
)

func init() {
	semCmd.AddCommand(semStatCmd)
	semCmd.AddCommand(semHoldCmd)
	semCmd.AddCommand(semRemoveCmd)

	semHoldCmd.Flags().Bool("keep", false, "leave the semaphore in place on exit")
}

func runSemStat(_ *cobra.Command, args []string) error {
	opts, err := options()
	if err != nil {
		return err
	}
	st, err := semmutex.InspectRefSemaphore(args[0], opts)
	if err != nil {
		return errors.Annotatef(err, "reading semaphore for %q", args[0])
	}
	fmt.Printf("key=%s id=%d gate=%d usage=%d\n", st.Key, st.ID, st.Gate, st.Usage)
	return nil
}

func runSemHold(_ *cobra.Command, args []string) error {
	opts, err := options()
	if err != nil {
		return err
	}
	sem, err := semmutex.GetRefSemaphore(args[0], opts)
	if err != nil {
		return errors.Annotatef(err, "attaching semaphore for %q", args[0])
	}
	if err := sem.Acquire(); err != nil {
		return errors.Annotate(err, "acquiring gate")
	}
	fmt.Printf("key=%s acquired initialized=%t, waiting for a signal\n", sem.Key(), sem.Initialized())
	sig := waitForSignal()
	log.Debug().Str("signal", sig.String()).Msg("releasing")

	if err := sem.Release(); err != nil {
		return errors.Annotate(err, "releasing gate")
	}
	if viper.GetBool("keep") {
		return nil
	}
	return errors.Annotate(sem.Remove(), "removing semaphore")
}

func runSemRemove(_ *cobra.Command, args []string) error {
	opts, err := options()
	if err != nil {
		return err
	}
	sem, err := semmutex.GetRefSemaphore(args[0], opts)
	if err != nil {
		return errors.Annotatef(err, "attaching semaphore for %q", args[0])
	}
	if err := sem.Remove(); err != nil {
		return errors.Annotate(err, "removing semaphore")
	}
	if _, err := semmutex.InspectRefSemaphore(args[0], semmutex.Options{
		FallbackPath: opts.FallbackPath,
		Tag:          opts.Tag,
		Reporter:     semmutex.NopReporter{},
	}); errors.Is(err, semmutex.ErrStale) {
		fmt.Println("removed")
		return nil
	}
	fmt.Println("detached, other processes still use it")
	return nil
}
