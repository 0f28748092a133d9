//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the engine with the default config in assets/.
func (Run) Engine() error {
	fmt.Println("Run engine...")
	if _, err := runGo([]string{"run", "."}, streamed()); err != nil {
		return err
	}
	return nil
}

// Runs the engine without a window for a fixed number of frames.
func (Run) Headless(frames string) error {
	fmt.Printf("Run engine headless for %s frames...\n", frames)
	if _, err := runGo([]string{"run", ".", "-frames", frames}, streamed()); err != nil {
		return err
	}
	return nil
}
