package dnscache

import (
	"time"

	"github.com/miekg/dns"
)

// Exchanger is the upstream name-resolution primitive. Exchange sends a
// query to the configured upstream endpoints; ExchangeWith targets one
// specific nameserver, which the NS chase needs when it asks a parent
// zone's server directly. The timeout bounds the whole exchange.
type Exchanger interface {
	Exchange(req *dns.Msg, timeout time.Duration) (rsp *dns.Msg, err error)
	ExchangeWith(server string, req *dns.Msg, timeout time.Duration) (rsp *dns.Msg, err error)
}

func exchangeDirect(server string, req *dns.Msg, timeout time.Duration) (rsp *dns.Msg, err error) {
	client_ := &dns.Client{Net: "tcp", Timeout: timeout}
	rsp, _, err = client_.Exchange(req, server)
	return
}
