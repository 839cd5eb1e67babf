//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type cmdOptions struct {
	args []string
	env  map[string]string
	// echo the child output even when mage runs without -v
	stream bool
}

type cmdOption func(*cmdOptions)

func withArgs(args ...string) cmdOption {
	return func(o *cmdOptions) {
		o.args = append(o.args, args...)
	}
}

func withEnv(key, value string) cmdOption {
	return func(o *cmdOptions) {
		if o.env == nil {
			o.env = map[string]string{}
		}
		o.env[key] = value
	}
}

func withStream() cmdOption {
	return func(o *cmdOptions) {
		o.stream = true
	}
}

// executeCmd runs command through mage/sh. The captured output is returned
// only when the command is not streamed.
func executeCmd(command string, options ...cmdOption) (string, error) {
	opts := &cmdOptions{}
	for _, o := range options {
		o(opts)
	}
	fmt.Printf("Executing: %s %s\n", command, strings.Join(opts.args, " "))

	if mg.Verbose() || opts.stream {
		_, err := sh.Exec(opts.env, os.Stdout, os.Stderr, command, opts.args...)
		if err != nil {
			return "", fmt.Errorf("error executing %s: %w", command, err)
		}
		return "", nil
	}

	out, err := sh.OutputWith(opts.env, command, opts.args...)
	if err != nil {
		fmt.Println("... failed command output:")
		fmt.Println(out)
		return "", fmt.Errorf("error executing %s: %w", command, err)
	}
	return out, nil
}

// lookupTool returns the path of the first tool found on PATH.
func lookupTool(names ...string) (string, error) {
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %s found in PATH", strings.Join(names, ", "))
}
