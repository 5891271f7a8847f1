package main

import (
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/richinsley/semmutex"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// counterRecord is the record the counter command increments.
type counterRecord struct {
	Value   uint64 `msgpack:"value"`
	LastPID int    `msgpack:"last_pid"`
}

// counterCmd increments a counter file under a mutex slot. Running several
// at once and checking the final value exercises cross-process exclusion.
var counterCmd = &cobra.Command{
	Use:   "counter [file]",
	Short: "Increment a counter file under a mutex slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runCounter,
}

func init() {
	counterCmd.Flags().Int("slot", 0, "slot guarding the file")
	counterCmd.Flags().Int("times", 1, "number of increments")
}

func runCounter(_ *cobra.Command, args []string) error {
	set, err := newSet()
	if err != nil {
		return err
	}
	slot := viper.GetInt("slot")
	mu, err := set.Create(slot, "counter")
	if err != nil {
		return errors.Annotatef(err, "creating slot %d", slot)
	}

	rec := semmutex.NewSharedRecord[counterRecord](afero.NewOsFs(), args[0], mu)
	pid := os.Getpid()
	for i := 0; i < viper.GetInt("times"); i++ {
		err := rec.Update(func(c *counterRecord) error {
			c.Value++
			c.LastPID = pid
			return nil
		})
		if err != nil {
			return err
		}
	}

	c, err := rec.Load()
	if err != nil {
		return err
	}
	fmt.Printf("value=%d last-pid=%d\n", c.Value, c.LastPID)
	return nil
}
