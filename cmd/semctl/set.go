package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/richinsley/semmutex"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// setCmd represents the mutex set command group
	setCmd = &cobra.Command{
		Use:   "set",
		Short: "Operate on the shared mutex set",
	}

	setCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Create the mutex set, or attach to it and wait until it is initialized",
		RunE:  runSetCreate,
	}

	setStatCmd = &cobra.Command{
		Use:   "stat",
		Short: "Show the slot values of the mutex set",
		RunE:  runSetStat,
	}

	setHoldCmd = &cobra.Command{
		Use:   "hold",
		Short: "Lock a slot until SIGINT or SIGTERM",
		RunE:  runSetHold,
	}

	setDestroyCmd = &cobra.Command{
		Use:   "destroy",
		Short: "Remove the mutex set for every process",
		RunE:  runSetDestroy,
	}
)

func init() {
	setCmd.AddCommand(setCreateCmd)
	setCmd.AddCommand(setStatCmd)
	setCmd.AddCommand(setHoldCmd)
	setCmd.AddCommand(setDestroyCmd)

	setCreateCmd.Flags().Int("slot", 0, "slot to resolve")
	setHoldCmd.Flags().Int("slot", 0, "slot to lock")
}

func newSet() (*semmutex.MutexSet, error) {
	opts, err := options()
	if err != nil {
		return nil, err
	}
	return semmutex.NewMutexSet(opts), nil
}

func runSetCreate(_ *cobra.Command, _ []string) error {
	set, err := newSet()
	if err != nil {
		return err
	}
	slot := viper.GetInt("slot")
	if _, err := set.Create(slot, "semctl"); err != nil {
		return errors.Annotatef(err, "creating slot %d", slot)
	}
	key, _ := set.Key()
	fmt.Printf("key=%s path=%s created=%t\n", key, set.KeyPath(), set.Created())
	return nil
}

func runSetStat(_ *cobra.Command, _ []string) error {
	set, err := newSet()
	if err != nil {
		return err
	}
	st, err := set.Stat()
	if err != nil {
		return errors.Annotate(err, "reading mutex set")
	}
	lastOp := "never"
	if !st.LastOp.IsZero() {
		lastOp = st.LastOp.Format(time.RFC3339)
	}
	fmt.Printf("key=%s id=%d slots=%d last-op=%s\n", st.Key, st.ID, st.Count, lastOp)

	var b strings.Builder
	for i, v := range st.Values {
		state := "free"
		if v == 0 {
			state = "locked"
		}
		fmt.Fprintf(&b, "%4d  %-6s  value=%d  waiting=%d\n", i, state, v, st.Waiting[i])
	}
	fmt.Print(b.String())
	return nil
}

func runSetHold(_ *cobra.Command, _ []string) error {
	set, err := newSet()
	if err != nil {
		return err
	}
	slot := viper.GetInt("slot")
	mu, err := set.Create(slot, "semctl")
	if err != nil {
		return errors.Annotatef(err, "creating slot %d", slot)
	}
	if err := mu.Lock(); err != nil {
		return errors.Annotatef(err, "locking slot %d", slot)
	}
	fmt.Printf("slot %d locked, waiting for a signal\n", slot)
	sig := waitForSignal()
	log.Debug().Str("signal", sig.String()).Int("slot", slot).Msg("unlocking")
	return errors.Annotatef(mu.Unlock(), "unlocking slot %d", slot)
}

func runSetDestroy(_ *cobra.Command, _ []string) error {
	set, err := newSet()
	if err != nil {
		return err
	}
	if err := set.Destroy(); err != nil {
		return errors.Annotate(err, "destroying mutex set")
	}
	fmt.Println("destroyed")
	return nil
}
