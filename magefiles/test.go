//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs the tests with the release build tag.
func (Test) Release() error {
	_, err := executeCmd("go", withArgs("test", "-tags", "release", "./..."), withStream())
	return err
}
