package main

import (
	"fmt"
	"os"

	"github.com/darmie/rayzor/internal/bundle"
	"github.com/darmie/rayzor/internal/rpkg"
)

// bundleInfoCommand implements "rayzorc bundle-info <path>": load a
// bundle's header and TOC (without decoding every function body — the
// same constant-per-function cost Bundle.Function relies on) and print
// its build id and function list.
func bundleInfoCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: rayzorc bundle-info <path>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	b, err := bundle.Load(f, info.Size())
	if err != nil {
		return err
	}
	fmt.Printf("build id:       %s\n", b.BuildID)
	fmt.Printf("entry module:   %s\n", b.EntryModule)
	fmt.Printf("entry function: %s\n", b.EntryFunction)
	fmt.Printf("target triple:  %s\n", b.Meta.TargetTriple)
	fmt.Printf("opt level:      %s\n", b.Meta.OptLevel)
	fmt.Println("functions:")
	for _, name := range b.FunctionNames() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

// rpkgInfoCommand implements "rayzorc rpkg-info <path>": load an archive
// and summarize its sources, native library, and method table.
func rpkgInfoCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: rayzorc rpkg-info <path>")
	}
	loaded, err := rpkg.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("package:        %s\n", loaded.PackageName)
	fmt.Printf("native library: %t\n", loaded.HasNativeLib)
	if loaded.HasPluginName {
		fmt.Printf("plugin name:    %s\n", loaded.PluginName)
	}
	fmt.Println("sources:")
	for path := range loaded.Sources {
		fmt.Printf("  %s\n", path)
	}
	fmt.Println("methods:")
	for _, m := range loaded.Methods {
		fmt.Printf("  %s.%s (static=%t, params=%d)\n", m.ClassName, m.MethodName, m.IsStatic, m.ParamCount)
	}
	return nil
}
