package targets

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Order selects which axis of the host × port product varies fastest.
type Order int

const (
	// PortMajor walks every host for the first port, then every host for
	// the next port.
	PortMajor Order = iota
	// HostMajor walks every port of the first host before moving on.
	HostMajor
)

func (o Order) String() string {
	if o == HostMajor {
		return "host"
	}
	return "port"
}

// ParseOrder accepts "port" or "host".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "port":
		return PortMajor, nil
	case "host":
		return HostMajor, nil
	}
	return PortMajor, fmt.Errorf("unknown order %q (want port or host)", s)
}

// Sequence is a lazy, restartable view over hosts × ports. Targets are
// computed from their index, so the product is never materialized and a
// scan can resume from any offset.
type Sequence struct {
	hosts []string
	ports []int
	order Order
}

// NewSequence builds a sequence. The slices are retained, not copied.
func NewSequence(hosts []string, ports []int, order Order) *Sequence {
	return &Sequence{hosts: hosts, ports: ports, order: order}
}

// Len returns the number of targets.
func (s *Sequence) Len() int {
	return len(s.hosts) * len(s.ports)
}

// Hosts returns the number of distinct hosts.
func (s *Sequence) Hosts() int { return len(s.hosts) }

// Ports returns a copy of the port list.
func (s *Sequence) Ports() []int { return slices.Clone(s.ports) }

func (s *Sequence) Order() Order { return s.order }

// At returns the i-th target. It panics when i is out of range.
func (s *Sequence) At(i int) Target {
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("targets: index %d out of range [0,%d)", i, s.Len()))
	}
	if s.order == HostMajor {
		return Target{Host: s.hosts[i/len(s.ports)], Port: s.ports[i%len(s.ports)]}
	}
	return Target{Host: s.hosts[i%len(s.hosts)], Port: s.ports[i/len(s.hosts)]}
}

// All yields every target with its index.
func (s *Sequence) All() iter.Seq2[int, Target] {
	return s.From(0)
}

// From yields targets starting at offset. Offsets past the end yield nothing.
func (s *Sequence) From(offset int) iter.Seq2[int, Target] {
	return func(yield func(int, Target) bool) {
		for i := max(offset, 0); i < s.Len(); i++ {
			if !yield(i, s.At(i)) {
				return
			}
		}
	}
}

// Fingerprint identifies the exact ordered target set, so a checkpoint
// taken against one sequence is not replayed against another.
func (s *Sequence) Fingerprint() string {
	h := murmur3.New128()
	h.Write([]byte(s.order.String()))
	for _, host := range s.hosts {
		h.Write([]byte{0})
		h.Write([]byte(host))
	}
	for _, p := range s.ports {
		h.Write([]byte{1})
		h.Write([]byte(strconv.Itoa(p)))
	}
	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}
