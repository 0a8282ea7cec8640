package matcher

import (
	"github.com/edgecomet/ubx/internal/ubx/psl"
	"github.com/edgecomet/ubx/internal/ubx/urlparse"
)

// Context is the derived, per-request view spec.md §4.3.1 "Context
// derivation" describes: parsed URL, eTLD+1 of both the request and its
// initiator, and the third-party flag.
type Context struct {
	URL           urlparse.Context
	Initiator     urlparse.Context
	HasInitiator  bool
	ReqETLD1      string
	DocETLD1      string
	IsThirdParty  bool
	IsMainFrame   bool
}

// DeriveContext parses req's URL and (optional) initiator and computes
// eTLD+1/third-party status via table. For main-frame requests the
// document host defaults to the request host, per spec.md §4.3.1.
func DeriveContext(req Request, initiator string, table *psl.Table, isMainFrame bool) *Context {
	c := &Context{IsMainFrame: isMainFrame}
	c.URL = urlparse.Parse(req.URL)
	c.ReqETLD1 = table.ETLD1(c.URL.Host)

	if initiator != "" {
		c.HasInitiator = true
		c.Initiator = urlparse.Parse(initiator)
		c.DocETLD1 = table.ETLD1(c.Initiator.Host)
	} else if isMainFrame {
		c.DocETLD1 = c.ReqETLD1
	}

	if c.DocETLD1 != "" && c.ReqETLD1 != "" {
		c.IsThirdParty = c.DocETLD1 != c.ReqETLD1
	}
	return c
}

// DocumentHost returns the host whose suffix-walk domain constraints are
// checked against: the initiator's host if present, else the request
// host for main-frame requests, else empty.
func (c *Context) DocumentHost() string {
	if c.HasInitiator {
		return c.Initiator.Host
	}
	if c.IsMainFrame {
		return c.URL.Host
	}
	return ""
}
