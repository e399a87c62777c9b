package vartree

import (
	"io"
	"strings"
)

// MockDB implements DB over in-memory package records for testing
type MockDB struct {
	Records map[string]MockRecord

	// Order fixes the enumeration order; defaults to map order
	Order []string
}

// MockRecord is one installed package's metadata
type MockRecord struct {
	Inherited   []string
	Environment string
}

// Packages lists the recorded packages
func (m *MockDB) Packages() ([]string, error) {
	if m.Order != nil {
		return m.Order, nil
	}
	cpvs := make([]string, 0, len(m.Records))
	for cpv := range m.Records {
		cpvs = append(cpvs, cpv)
	}
	return cpvs, nil
}

// Inherited returns the recorded eclass list
func (m *MockDB) Inherited(cpv string) ([]string, error) {
	return m.Records[cpv].Inherited, nil
}

// Environment returns the recorded environment blob
func (m *MockDB) Environment(cpv string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.Records[cpv].Environment)), nil
}
