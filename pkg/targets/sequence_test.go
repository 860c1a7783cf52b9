package targets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s *Sequence, offset int) []string {
	var out []string
	for _, tgt := range s.From(offset) {
		out = append(out, tgt.String())
	}
	return out
}

func TestSequence_PortMajor(t *testing.T) {
	seq := NewSequence([]string{"a", "b"}, []int{80, 443}, PortMajor)

	assert.Equal(t, 4, seq.Len())
	assert.Equal(t, []string{"a:80", "b:80", "a:443", "b:443"}, collect(seq, 0))
}

func TestSequence_HostMajor(t *testing.T) {
	seq := NewSequence([]string{"a", "b"}, []int{80, 443}, HostMajor)
	assert.Equal(t, []string{"a:80", "a:443", "b:80", "b:443"}, collect(seq, 0))
}

func TestSequence_UniqueAndComplete(t *testing.T) {
	hosts, err := ParseHosts("10.0.0.0/29 10.0.0.1-3")
	require.NoError(t, err)
	ports, err := ParsePorts("80,443,8000-8002")
	require.NoError(t, err)

	seq := NewSequence(hosts, ports, PortMajor)
	seen := map[Target]bool{}
	for i, tgt := range seq.All() {
		assert.False(t, seen[tgt], "duplicate target %s at %d", tgt, i)
		seen[tgt] = true
	}
	assert.Len(t, seen, len(hosts)*len(ports))
	assert.Equal(t, 6*5, seq.Len())
}

func TestSequence_Restartable(t *testing.T) {
	seq := NewSequence([]string{"a", "b", "c"}, []int{1, 2}, PortMajor)

	first := collect(seq, 0)
	second := collect(seq, 0)
	assert.Equal(t, first, second)
	assert.Equal(t, first[4:], collect(seq, 4))
	assert.Empty(t, collect(seq, 99))
}

func TestSequence_EarlyBreak(t *testing.T) {
	seq := NewSequence([]string{"a", "b", "c"}, []int{1}, PortMajor)
	n := 0
	for range seq.All() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestSequence_AtOutOfRange(t *testing.T) {
	seq := NewSequence([]string{"a"}, []int{1}, PortMajor)
	assert.Panics(t, func() { seq.At(1) })
}

func TestSequence_Fingerprint(t *testing.T) {
	a := NewSequence([]string{"a", "b"}, []int{80}, PortMajor)
	b := NewSequence([]string{"a", "b"}, []int{80}, PortMajor)
	c := NewSequence([]string{"a", "b"}, []int{80}, HostMajor)
	d := NewSequence([]string{"ab"}, []int{80}, PortMajor)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
	assert.Len(t, a.Fingerprint(), 32)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("host")
	require.NoError(t, err)
	assert.Equal(t, HostMajor, o)

	o, err = ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, PortMajor, o)

	_, err = ParseOrder("random")
	assert.Error(t, err)
}
