// Package clientip resolves the originating client address of a request
// behind reverse proxies.
//
// An Extractor consults a configurable, ordered list of trusted headers
// (DefaultHeaders unless HTTP_TRUSTED_IP_HEADERS says otherwise) and falls
// back to RemoteAddr. Only list headers your edge proxy overwrites; any other
// header can be forged by the client.
//
// The session API records the resolved address in each new session's
// profile:
//
//	r.Use(clientip.Middleware(clientip.NewFromConfig(cfg)))
//	...
//	ip := clientip.FromContext(r.Context())
package clientip
