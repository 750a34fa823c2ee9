// Package context implements the host module registration surface: the
// contract a host program uses to bind native functions into a shared
// table before compiling and running scripts against it. spec.md §1
// calls this surface out of scope beyond its interface; this package is
// that interface plus the thin bookkeeping (conflict detection) a real
// embedder needs around runtime.VM.Register.
package context

import (
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/jcorbin/runevm/item"
	"github.com/jcorbin/runevm/runtime"
)

// APIVersion is the semantic version of this package's host-registration
// contract (Function, Register, Install), bumped whenever that contract
// changes incompatibly. A host that links against a script compiled for
// a newer required version should refuse to run it rather than fail
// confusingly deep inside Install.
const APIVersion = "v1.0.0"

// RequireAPIVersion reports an error unless APIVersion satisfies
// required under semver precedence: same major version, and
// APIVersion >= required.
func RequireAPIVersion(required string) error {
	if !semver.IsValid(required) {
		return fmt.Errorf("context: invalid required API version %q", required)
	}
	if semver.Major(required) != semver.Major(APIVersion) {
		return fmt.Errorf("context: host API %s is incompatible with required %s", APIVersion, required)
	}
	if semver.Compare(APIVersion, required) < 0 {
		return fmt.Errorf("context: host API %s is older than required %s", APIVersion, required)
	}
	return nil
}

// Function is one host-registered external function, re-exported from
// runtime so callers building a Context don't need to import both
// packages just to populate one.
type Function = runtime.Function

// ConflictingFunction reports an attempt to register two functions under
// the same Hash.
type ConflictingFunction struct {
	Hash item.Hash
	Name string
}

func (e *ConflictingFunction) Error() string {
	return fmt.Sprintf("context: function already registered for %s (hash %d)", e.Name, e.Hash)
}

// Context accumulates host-registered functions by stable hash, ready to
// install into one or more VM instances compiled against the same unit.
type Context struct {
	Functions map[item.Hash]Function
	names     map[item.Hash]string
}

// New returns an empty Context.
func New() *Context {
	return &Context{Functions: map[item.Hash]Function{}, names: map[item.Hash]string{}}
}

// Register binds fn under hash, identified by name for diagnostics.
// Returns a *ConflictingFunction if hash is already bound.
func (c *Context) Register(hash item.Hash, name string, fn Function) error {
	if _, exists := c.Functions[hash]; exists {
		return &ConflictingFunction{Hash: hash, Name: name}
	}
	c.Functions[hash] = fn
	c.names[hash] = name
	return nil
}

// RegisterGlobalFn is a convenience over Register that derives hash from
// a free-function path the way compile.Compiler's CallFn codegen does.
func (c *Context) RegisterGlobalFn(name string, fn Function) error {
	return c.Register(item.GlobalFn(item.Path{item.Named(name)}, item.EMPTY), name, fn)
}

// RegisterInstanceFn is the instance-method analogue of RegisterGlobalFn,
// keyed the same way compile.Compiler's CallInstance codegen resolves at
// runtime: (receiver type hash, method name).
func (c *Context) RegisterInstanceFn(typeName, method string, fn Function) error {
	typeHash := item.TypeHash(item.Path{item.Named(typeName)}, item.EMPTY)
	return c.Register(item.InstanceFn(typeHash, method), typeName+"::"+method, fn)
}

// Install copies every registered function into vm, stopping at (and
// returning) the first Register-equivalent conflict the VM reports.
func (c *Context) Install(vm *runtime.VM) error {
	for hash, fn := range c.Functions {
		if err := vm.Register(hash, fn); err != nil {
			return &ConflictingFunction{Hash: hash, Name: c.names[hash]}
		}
	}
	return nil
}
