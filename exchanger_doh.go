package dnscache

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gojek/heimdall/v7/hystrix"
	"github.com/miekg/dns"
	"github.com/quic-go/quic-go/http3"
)

var Quad9DohEndpoints = []string{
	"https://149.112.112.11/dns-query",
	"https://9.9.9.11/dns-query",
}

const HttpClientMaxConcurrency = 64

// DohExchanger resolves through DNS-over-HTTPS endpoints (dns-message wire
// format). The per-call timeout rides on the request context; the hystrix
// limits below are the outer safety net.
type DohExchanger struct {
	httpClient   *hystrix.Client
	endpoints    []string
	nextEndpoint func() string
}

func NewDohExchanger(endpoints []string, useHttp3 bool) (exch *DohExchanger) {
	httpClient_ := &http.Client{
		Transport: &http.Transport{
			Proxy: nil,
		},
	}
	if useHttp3 {
		httpClient_.Transport = &http3.RoundTripper{}
	}
	exch = &DohExchanger{
		httpClient: hystrix.NewClient(
			hystrix.WithHTTPClient(httpClient_),
			hystrix.WithHTTPTimeout(15*time.Second),
			hystrix.WithHystrixTimeout(20*time.Second),
			hystrix.WithMaxConcurrentRequests(HttpClientMaxConcurrency),
			hystrix.WithRequestVolumeThreshold(HttpClientMaxConcurrency),
			hystrix.WithErrorPercentThreshold(50),
			hystrix.WithSleepWindow(1),
			hystrix.WithRetryCount(0),
		),
		endpoints: endpoints,
	}
	exch.nextEndpoint = func() func() string {
		initV_ := 0
		if len(exch.endpoints) == 1 {
			return func() string {
				return exch.endpoints[0]
			}
		} else {
			return func() string {
				ret_ := exch.endpoints[initV_]
				initV_ = (initV_ + 1) % len(exch.endpoints)
				return ret_
			}
		}
	}()
	return
}

func (exch *DohExchanger) Exchange(req *dns.Msg, timeout time.Duration) (rsp *dns.Msg, err error) {
	msgBytes_, err := req.Pack()
	if err != nil {
		return nil, err
	}
	msgBase64_ := base64.RawURLEncoding.EncodeToString(msgBytes_)
	ctx_, cancel_ := context.WithTimeout(context.Background(), timeout)
	defer cancel_()
	httpReq_, err := http.NewRequestWithContext(ctx_, http.MethodGet,
		fmt.Sprintf("%s?dns=%s", exch.nextEndpoint(), msgBase64_), nil)
	if err != nil {
		return nil, err
	}
	httpReq_.Header.Set("Accept", "application/dns-message")
	httpRsp_, err := exch.httpClient.Do(httpReq_)
	defer func() {
		if httpRsp_ != nil && httpRsp_.Body != nil {
			_ = httpRsp_.Body.Close()
		}
	}()
	if err != nil {
		return nil, err
	}
	buf_, err := io.ReadAll(httpRsp_.Body)
	if err != nil {
		return nil, err
	}
	msgRsp_ := new(dns.Msg)
	if err = msgRsp_.Unpack(buf_); err != nil {
		return nil, err
	}
	log.Tracef("got reply from upstream: %v", msgRsp_.String())
	return msgRsp_, nil
}

func (exch *DohExchanger) ExchangeWith(server string, req *dns.Msg, timeout time.Duration) (
	rsp *dns.Msg, err error) {

	// Parent-zone servers speak plain DNS, not DoH.
	return exchangeDirect(server, req, timeout)
}
