//go:build mage

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL source in assets/shaders to SPIR-V next to it.
func (Build) Shaders() error {
	var sources []string
	for _, ext := range []string{"vert", "frag", "comp"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, "*."+ext))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shader sources found in %s", shaderDir)
	}
	compiler, err := lookupTool("glslc", "glslangValidator")
	if err != nil {
		return err
	}
	for _, src := range sources {
		args := withArgs(src, "-o", src+".spv")
		if !strings.HasSuffix(compiler, "glslc") {
			args = withArgs("-V", src, "-o", src+".spv")
		}
		if _, err := executeCmd(compiler, args, withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the demo binary.
func (Build) Demo() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/vktogo", "."), withEnv("CGO_ENABLED", "1"), withStream())
	return err
}
