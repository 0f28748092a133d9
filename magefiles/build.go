//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var binaryPath = filepath.Join("bin", "kiln")

// Builds the engine binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Tidy)
	if _, err := runGo([]string{"build", "-o", binaryPath, "."}, streamed()); err != nil {
		return err
	}
	return nil
}

// Runs go mod tidy and go vet.
func (Build) Tidy() error {
	return goTidy()
}
