// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package marmo

import (
	"fmt"
	"sync"
)

// ProcessorFactory creates a new processor instance.
type ProcessorFactory func() Processor

var (
	processorRegistry      = map[string]ProcessorFactory{}
	processorRegistryMutex sync.RWMutex

	programRegistry      = map[string]Program{}
	programRegistryMutex sync.RWMutex
)

// RegisterProcessorFactory registers a new processor factory under the given
// name. Registering a name twice panics, since registration is expected to
// happen in package init functions.
func RegisterProcessorFactory(name string, factory ProcessorFactory) {
	processorRegistryMutex.Lock()
	defer processorRegistryMutex.Unlock()
	if _, found := processorRegistry[name]; found {
		panic(fmt.Sprintf("processor factory %q already registered", name))
	}
	processorRegistry[name] = factory
}

// GetProcessorFactory returns the factory registered under the given name,
// nil if there is none.
func GetProcessorFactory(name string) ProcessorFactory {
	processorRegistryMutex.RLock()
	defer processorRegistryMutex.RUnlock()
	return processorRegistry[name]
}

// NewProcessor creates a processor using the factory registered under the
// given name.
func NewProcessor(name string) (Processor, error) {
	factory := GetProcessorFactory(name)
	if factory == nil {
		return nil, fmt.Errorf("no processor registered under %q", name)
	}
	return factory(), nil
}

// RegisterProgram makes a program available for deployment under the given
// name. Registering a name twice panics.
func RegisterProgram(name string, program Program) {
	if len(name) == 0 || len(name) > maxProgramNameLength {
		panic(fmt.Sprintf("invalid program name %q", name))
	}
	programRegistryMutex.Lock()
	defer programRegistryMutex.Unlock()
	if _, found := programRegistry[name]; found {
		panic(fmt.Sprintf("program %q already registered", name))
	}
	programRegistry[name] = program
}

func GetProgram(name string) (Program, bool) {
	programRegistryMutex.RLock()
	defer programRegistryMutex.RUnlock()
	program, found := programRegistry[name]
	return program, found
}
