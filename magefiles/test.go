//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test.
func (Test) All() error {
	_, err := runGo([]string{"test", "./..."}, streamed())
	return err
}

// Runs every package test with the race detector.
func (Test) Race() error {
	_, err := runGo([]string{"test", "-race", "./..."}, withEnv("CGO_ENABLED", "1"), streamed())
	return err
}

// Runs the reconciler and scene view tests only.
func (Test) Systems() error {
	_, err := runGo([]string{"test", "-v", "./engine/systems/..."}, streamed())
	return err
}
