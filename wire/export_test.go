package wire

// This file exposes unexported helpers for black-box tests
// in package wire_test. It is compiled only during `go test`.

var TestPayloadLen = payloadLen

const TestTagCount = tagCount
