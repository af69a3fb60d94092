package dnscache

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/buraksezer/connpool"
	"github.com/miekg/dns"
)

var Quad9Dns53Endpoints = []string{
	"tcp://9.9.9.11:53",
	"tcp://149.112.112.11:53",
}

const maxUpstreamAttempts = 3

type Dns53Exchanger struct {
	endpoints   []string
	netConnPool connpool.Pool
}

// NewDns53Exchanger builds a pooled TCP exchanger. With no endpoints given
// it uses the system resolvers from /etc/resolv.conf, falling back to the
// Quad9 defaults.
func NewDns53Exchanger(endpoints []string) (exch *Dns53Exchanger, err error) {
	if len(endpoints) == 0 {
		endpoints = SystemDns53Endpoints()
	}
	exch = &Dns53Exchanger{endpoints: endpoints}
	exch.netConnPool, err = newConnPool4Exchanger(endpoints)
	if err != nil {
		return nil, err
	}
	return
}

func SystemDns53Endpoints() (endpoints []string) {
	clientConfig_, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(clientConfig_.Servers) == 0 {
		return Quad9Dns53Endpoints
	}
	endpoints = make([]string, 0, len(clientConfig_.Servers))
	for _, server := range clientConfig_.Servers {
		endpoints = append(endpoints, "tcp://"+net.JoinHostPort(server, clientConfig_.Port))
	}
	return
}

func newConnPool4Exchanger(endpoints []string) (pool connpool.Pool, err error) {
	dialParams_ := make([][]string, 0, len(endpoints))
	for _, edp := range endpoints {
		url_, err := url.Parse(strings.TrimSpace(edp))
		if err != nil {
			return nil, err
		}
		if strings.ToLower(url_.Scheme) != "tcp" || url_.Host == "" {
			log.Errorf("endpoint not usable, should be like tcp://8.8.8.8:53,tcp://8.8.4.4:53")
			continue
		}
		dialParams_ = append(dialParams_, []string{url_.Scheme, url_.Host})
	}
	if len(dialParams_) == 0 {
		return nil, fmt.Errorf("no usable endpoint, should be like tcp://8.8.8.8:53,tcp://8.8.4.4:53")
	}
	nextDailParams_ := func() func() []string {
		initV_ := 0
		if len(dialParams_) == 1 {
			return func() []string {
				return dialParams_[0]
			}
		} else {
			return func() []string {
				ret_ := dialParams_[initV_]
				initV_ = (initV_ + 1) % len(dialParams_)
				return ret_
			}
		}
	}()
	factory_ := func() (net.Conn, error) {
		dParams_ := nextDailParams_()
		log.Debugf("new connection to: %+v", dParams_)
		return net.Dial(dParams_[0], dParams_[1])
	}
	// No eager dialing, a library should not open connections before the
	// first lookup.
	return connpool.NewChannelPool(0, len(dialParams_)*64, factory_)
}

func (exch *Dns53Exchanger) Exchange(req *dns.Msg, timeout time.Duration) (rsp *dns.Msg, err error) {
	client_ := &dns.Client{Timeout: timeout}
	for attempt_ := 0; attempt_ < maxUpstreamAttempts; attempt_++ {
		var netCon_ net.Conn
		netCon_, err = exch.netConnPool.Get(context.Background())
		if err != nil {
			log.Errorf("error: %+v, conn: %+v", err, netCon_)
			continue
		}
		rsp, _, err = client_.ExchangeWithConn(req, &dns.Conn{Conn: netCon_})
		if err != nil {
			if pc, ok := netCon_.(*connpool.PoolConn); ok {
				pc.MarkUnusable()
				if closeErr_ := pc.Close(); closeErr_ != nil {
					log.Error(closeErr_)
				}
			}
			if isTimeoutError(err) {
				// The caller's whole lifetime is spent, retrying on
				// another connection would only stack more waiting.
				return nil, err
			}
			continue
		}
		if closeErr_ := netCon_.Close(); closeErr_ != nil {
			log.Error(closeErr_)
		}
		return rsp, nil
	}
	if err == nil {
		err = fmt.Errorf("no upstream connection usable")
	}
	return nil, err
}

func (exch *Dns53Exchanger) ExchangeWith(server string, req *dns.Msg, timeout time.Duration) (
	rsp *dns.Msg, err error) {

	return exchangeDirect(server, req, timeout)
}
