package bridge

import (
	"fmt"

	"github.com/c360/graft/errors"
	"github.com/c360/graft/foreign"
)

// Allocation hints for classes rooted directly at the universal base. The
// instance layout adds one word for the managed back-reference slot.
const (
	baseClassSize    uintptr = 136
	baseInstanceSize uintptr = 24
	slotSize         uintptr = 8
)

// Extension describes one link of the base-capability chain a registered
// type derives from. Links form a list through Parent; the root link always
// names the universal base class. InitClass installs the link's overrides on
// the new class; the registry invokes the chain root-first, so the most
// derived link installs last and wins.
type Extension struct {
	// Base names the foreign class this link extends.
	Base string

	// ClassSize and InstanceSize are the allocation hints handed to the
	// foreign allocator for types registered through this link.
	ClassSize    uintptr
	InstanceSize uintptr

	// Parent is the next link toward the root. Nil marks the root link.
	Parent *Extension

	// InitClass installs this link's overrides. It runs inside the foreign
	// class-init, after every ancestor link's InitClass.
	InitClass func(class *foreign.Class, impl Implementation, reg *Registry) error
}

// ObjectExtension returns the root extension chain link: it extends the
// universal base class and installs the selective behavior trampolines for
// whatever capabilities the implementation provides. Custom chains should
// terminate at this link so registered types keep property and construction
// dispatch.
func ObjectExtension() *Extension {
	return &Extension{
		Base:         foreign.BaseClassName,
		ClassSize:    baseClassSize,
		InstanceSize: baseInstanceSize + slotSize,
		InitClass: func(class *foreign.Class, impl Implementation, reg *Registry) error {
			return reg.installObjectBehaviors(class, impl)
		},
	}
}

// resolveChain validates an extension chain and returns its links root-first
// together with the foreign class the new type will directly extend.
//
// The chain must be acyclic, its root must name the universal base class,
// every named base must be registered, each link's base must derive from its
// parent link's base, and declared sizes must not shrink along the chain.
func resolveChain(rt *foreign.Runtime, leaf *Extension) ([]*Extension, *foreign.Class, error) {
	if leaf == nil {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("extension is nil: %w", errors.ErrInvalidExtension),
			"Registry", "RegisterType", "resolve extension chain")
	}

	// Collect leaf-to-root, refusing cycles.
	seen := make(map[*Extension]bool)
	var links []*Extension
	for ext := leaf; ext != nil; ext = ext.Parent {
		if seen[ext] {
			return nil, nil, errors.WrapInvalid(
				fmt.Errorf("extension chain loops at base %q: %w", ext.Base, errors.ErrInvalidExtension),
				"Registry", "RegisterType", "resolve extension chain")
		}
		seen[ext] = true
		links = append(links, ext)
	}

	root := links[len(links)-1]
	if root.Base != foreign.BaseClassName {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("extension chain roots at %q, not the universal base: %w",
				root.Base, errors.ErrInvalidExtension),
			"Registry", "RegisterType", "resolve extension chain")
	}

	// Resolve every named base and check the chain's own derivation story.
	classes := make([]*foreign.Class, len(links))
	for i, ext := range links {
		c, err := rt.LookupClass(ext.Base)
		if err != nil {
			return nil, nil, errors.WrapInvalid(
				fmt.Errorf("extension base %q is not registered: %w", ext.Base, errors.ErrInvalidExtension),
				"Registry", "RegisterType", "resolve extension chain")
		}
		classes[i] = c
	}
	for i := 0; i+1 < len(links); i++ {
		child, parent := classes[i], classes[i+1]
		if !child.IsA(parent) {
			return nil, nil, errors.WrapInvalid(
				fmt.Errorf("extension base %q does not derive from %q: %w",
					child.Name(), parent.Name(), errors.ErrInvalidExtension),
				"Registry", "RegisterType", "resolve extension chain")
		}
		childExt, parentExt := links[i], links[i+1]
		if childExt.ClassSize > 0 && parentExt.ClassSize > childExt.ClassSize {
			return nil, nil, errors.WrapInvalid(
				fmt.Errorf("extension %q declares a class smaller than its parent: %w",
					childExt.Base, errors.ErrInvalidExtension),
				"Registry", "RegisterType", "resolve extension chain")
		}
		if childExt.InstanceSize > 0 && parentExt.InstanceSize > childExt.InstanceSize {
			return nil, nil, errors.WrapInvalid(
				fmt.Errorf("extension %q declares an instance smaller than its parent: %w",
					childExt.Base, errors.ErrInvalidExtension),
				"Registry", "RegisterType", "resolve extension chain")
		}
	}

	// Reverse to root-first for base-to-derived initialization.
	rootFirst := make([]*Extension, len(links))
	for i, ext := range links {
		rootFirst[len(links)-1-i] = ext
	}
	return rootFirst, classes[0], nil
}
