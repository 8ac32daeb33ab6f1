package rpkg

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRoundTripRpkg(t *testing.T) {
	methods := []MethodDesc{{
		SymbolName: "my_func",
		ClassName:  "MyClass",
		MethodName: "doStuff",
		IsStatic:   true,
		ParamCount: 2,
		ReturnType: 1,
		ParamTypes: []uint8{1, 2},
	}}
	source := "extern class MyClass {\n  static function doStuff(a:Int, b:Float):Int;\n}\n"

	b := NewBuilder("test-pkg")
	b.AddNativeLib([]byte("fake dylib bytes"), runtime.GOOS, runtime.GOARCH)
	b.AddSourceFile("test/MyClass.src", source)
	if err := b.AddMethodTable("test_plugin", methods); err != nil {
		t.Fatalf("AddMethodTable: %v", err)
	}

	path := filepath.Join(t.TempDir(), "round_trip.rpkg")
	if err := b.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.PackageName != "test-pkg" {
		t.Fatalf("PackageName = %q, want test-pkg", loaded.PackageName)
	}
	if len(loaded.Methods) != 1 || loaded.Methods[0].SymbolName != "my_func" {
		t.Fatalf("Methods = %+v", loaded.Methods)
	}
	if got := loaded.Methods[0].ParamTypes; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("ParamTypes = %v, want [1 2]", got)
	}
	if src, ok := loaded.Sources["test/MyClass.src"]; !ok || src != source {
		t.Fatalf("Sources[test/MyClass.src] = %q, ok=%v", src, ok)
	}
	if !loaded.HasPluginName || loaded.PluginName != "test_plugin" {
		t.Fatalf("PluginName = %q, has=%v", loaded.PluginName, loaded.HasPluginName)
	}
	if !loaded.HasNativeLib || string(loaded.NativeLib) != "fake dylib bytes" {
		t.Fatalf("NativeLib = %q, has=%v", loaded.NativeLib, loaded.HasNativeLib)
	}
}

func TestNativeLibSkippedForOtherPlatform(t *testing.T) {
	b := NewBuilder("test-pkg")
	b.AddNativeLib([]byte("other platform bytes"), "not-"+runtime.GOOS, "not-"+runtime.GOARCH)

	path := filepath.Join(t.TempDir(), "other_platform.rpkg")
	if err := b.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.HasNativeLib {
		t.Fatal("Load matched a native lib tagged for a different platform")
	}
}

func TestLoadRejectsInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad_magic.rpkg")
	if err := os.WriteFile(path, []byte("NOT_AN_RPKG_FILE"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a file with invalid magic")
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	b := NewBuilder("test-pkg")
	path := filepath.Join(t.TempDir(), "future_version.rpkg")
	if err := b.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	footerStart := len(data) - footerSize
	data[footerStart+4] = 2 // bump version byte
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an unsupported version")
	}
}

func TestLoadRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.rpkg")
	if err := os.WriteFile(path, []byte("short"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a file shorter than the footer")
	}
}
