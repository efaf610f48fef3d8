package mysql

import (
	"net"
	"strconv"
)

// hostPort defaults to the MySQL port when none is configured.
func hostPort(host string, port int) string {
	if port <= 0 {
		port = 3306
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
