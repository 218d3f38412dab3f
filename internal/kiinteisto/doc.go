// Package kiinteisto is a client for the Kiinteistömittaus water meter API.
//
// The API is a single remote-procedure style endpoint. A reading request is a
// POST of
//
//	{"c": "getwatermeterdata", "p": ["<device id>", "<period>"]}
//
// authenticated with an x-functions-key header. The answer carries the
// readings as strings in its "p" member:
//
//	{"p": ["2023-01-01T00:00:00 = 10,5", "2023-01-01T01:00:00 = 12,0"]}
//
// Timestamps have no zone and are UTC. Values may use a comma as the decimal
// separator.
//
// # Sources
//
// A run either fetches a Live response or replays an Offline one saved
// earlier with --savejson:
//
//	raw, err := client.Fetch(ctx, rc)
//	points, err := kiinteisto.ParseSource(kiinteisto.Live{Response: raw})
//
//	points, err := kiinteisto.ParseSource(kiinteisto.Offline{Path: "data.json"})
//
// # Error Handling
//
// Transport failures wrap ErrRequestFailed or ErrUnexpectedStatus. Anything
// wrong with the payload wraps one of the format errors (ErrInvalidJSON,
// ErrMissingLines, ErrMalformedLine, ErrBadTimestamp, ErrBadValue).
// Nothing is retried.
package kiinteisto
