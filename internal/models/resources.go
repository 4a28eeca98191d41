package models

import "fmt"

// ResourceRequirements describes capacity across the named resource
// dimensions tracked by the pool. All values are non-negative; zero means
// the dimension is not needed.
type ResourceRequirements struct {
	MemoryMB        float64 // megabytes of memory
	CPUCores        float64 // fractional CPU cores
	NetworkMbps     float64 // network bandwidth
	StorageMB       float64 // scratch storage
	ConcurrentUsers float64 // simulated virtual users
}

// Dimension pairs a resource dimension name with its value.
type Dimension struct {
	Name  string
	Value float64
}

// Dimensions returns the requirements as an ordered list of named values.
// The order is stable so error messages and reports are deterministic.
func (r ResourceRequirements) Dimensions() []Dimension {
	return []Dimension{
		{Name: "memory", Value: r.MemoryMB},
		{Name: "cpu", Value: r.CPUCores},
		{Name: "network", Value: r.NetworkMbps},
		{Name: "storage", Value: r.StorageMB},
		{Name: "concurrentUsers", Value: r.ConcurrentUsers},
	}
}

// Validate checks that no dimension is negative.
func (r ResourceRequirements) Validate() error {
	for _, d := range r.Dimensions() {
		if d.Value < 0 {
			return fmt.Errorf("resource dimension %s is negative (%g)", d.Name, d.Value)
		}
	}
	return nil
}

// Add returns the per-dimension sum of r and other.
func (r ResourceRequirements) Add(other ResourceRequirements) ResourceRequirements {
	return ResourceRequirements{
		MemoryMB:        r.MemoryMB + other.MemoryMB,
		CPUCores:        r.CPUCores + other.CPUCores,
		NetworkMbps:     r.NetworkMbps + other.NetworkMbps,
		StorageMB:       r.StorageMB + other.StorageMB,
		ConcurrentUsers: r.ConcurrentUsers + other.ConcurrentUsers,
	}
}

// Sub returns the per-dimension difference r minus other.
func (r ResourceRequirements) Sub(other ResourceRequirements) ResourceRequirements {
	return ResourceRequirements{
		MemoryMB:        r.MemoryMB - other.MemoryMB,
		CPUCores:        r.CPUCores - other.CPUCores,
		NetworkMbps:     r.NetworkMbps - other.NetworkMbps,
		StorageMB:       r.StorageMB - other.StorageMB,
		ConcurrentUsers: r.ConcurrentUsers - other.ConcurrentUsers,
	}
}

// Max returns the per-dimension maximum of r and other.
func (r ResourceRequirements) Max(other ResourceRequirements) ResourceRequirements {
	maxOf := func(a, b float64) float64 {
		if a > b {
			return a
		}
		return b
	}
	return ResourceRequirements{
		MemoryMB:        maxOf(r.MemoryMB, other.MemoryMB),
		CPUCores:        maxOf(r.CPUCores, other.CPUCores),
		NetworkMbps:     maxOf(r.NetworkMbps, other.NetworkMbps),
		StorageMB:       maxOf(r.StorageMB, other.StorageMB),
		ConcurrentUsers: maxOf(r.ConcurrentUsers, other.ConcurrentUsers),
	}
}

// Exceeds returns the names of every dimension where r is greater than
// available. An empty result means r fits within available.
func (r ResourceRequirements) Exceeds(available ResourceRequirements) []string {
	var exceeded []string
	avail := available.Dimensions()
	for i, d := range r.Dimensions() {
		if d.Value > avail[i].Value {
			exceeded = append(exceeded, d.Name)
		}
	}
	return exceeded
}

// IsZero reports whether every dimension is zero.
func (r ResourceRequirements) IsZero() bool {
	return r == ResourceRequirements{}
}
