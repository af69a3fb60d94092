package dnscache

import (
	"os"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

func TestSliceContains(t *testing.T) {
	assert.True(t, SliceContains([]string{"MX", "AAAA", "TXT"}, "AAAA"))
	assert.False(t, SliceContains([]string{"MX", "AAAA", "TXT"}, "A"))
	assert.True(t, SliceContains([]int{1, 2, 3}, 2))
}

func TestRemoveSliceDuplicate(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"},
		RemoveSliceDuplicate([]string{"a", "b", "a", "c", "b"}))
	assert.Equal(t, []string{}, RemoveSliceDuplicate([]string(nil)))
}

func TestPathExists(t *testing.T) {
	tmpFile_ := t.TempDir() + "/exists"
	assert.False(t, PathExists(tmpFile_))
	assert.Nil(t, os.WriteFile(tmpFile_, []byte("x"), 0o644))
	assert.True(t, PathExists(tmpFile_))
}

func TestRdataText(t *testing.T) {
	tests := []struct {
		name string
		rr   dns.RR
		want string
	}{
		{
			name: "a_record",
			rr: &dns.A{
				Hdr: dns.RR_Header{Name: "host.example.com.", Rrtype: dns.TypeA,
					Class: dns.ClassINET, Ttl: 300},
				A: []byte{192, 0, 2, 1},
			},
			want: "192.0.2.1",
		},
		{
			name: "ns_record",
			rr: &dns.NS{
				Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeNS,
					Class: dns.ClassINET, Ttl: 300},
				Ns: "ns1.example.com.",
			},
			want: "ns1.example.com.",
		},
		{
			name: "cname_record",
			rr: &dns.CNAME{
				Hdr: dns.RR_Header{Name: "www.example.com.", Rrtype: dns.TypeCNAME,
					Class: dns.ClassINET, Ttl: 300},
				Target: "example.com.",
			},
			want: "example.com.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RdataText(tt.rr))
		})
	}
}
