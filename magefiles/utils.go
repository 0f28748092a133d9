//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type goCmd struct {
	args   []string
	env    map[string]string
	stream bool
}

type goCmdOption func(*goCmd)

func streamed() goCmdOption {
	return func(c *goCmd) {
		c.stream = true
	}
}

func withEnv(key, value string) goCmdOption {
	return func(c *goCmd) {
		if c.env == nil {
			c.env = map[string]string{}
		}
		c.env[key] = value
	}
}

// runGo runs the go tool and returns its combined output. Output is echoed
// when mage runs verbose or the command asks for it.
func runGo(args []string, options ...goCmdOption) (string, error) {
	c := &goCmd{args: args}
	for _, o := range options {
		o(c)
	}

	fmt.Printf("Executing: go %s\n", strings.Join(c.args, " "))
	echo := mg.Verbose() || c.stream

	var b bytes.Buffer
	var stdout, stderr io.Writer = &b, &b
	if echo {
		stdout = io.MultiWriter(&b, os.Stdout)
		stderr = io.MultiWriter(&b, os.Stderr)
	}
	if _, err := sh.Exec(c.env, stdout, stderr, mg.GoCmd(), c.args...); err != nil {
		if !echo {
			fmt.Println("... failed command output:")
			fmt.Println(b.String())
		}
		return "", fmt.Errorf("go %s: %w", c.args[0], err)
	}
	return b.String(), nil
}

func goTidy() error {
	if _, err := runGo([]string{"mod", "tidy"}); err != nil {
		return err
	}
	_, err := runGo([]string{"vet", "./..."})
	return err
}
