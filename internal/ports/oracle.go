package ports

import (
	"net"
	"strconv"
)

// ListenOracle is the stock availability oracle: it attempts a TCP listen
// on the loopback interface and reports whether the bind succeeded.
func ListenOracle(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
