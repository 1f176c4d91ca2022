package api

import (
	"fmt"
	"net"
	"time"
)

// Service is the network location of a pipeline service.
type Service struct {
	Address string
	Port    string
}

func (s *Service) Target() string {
	return fmt.Sprintf("%s:%s", s.Address, s.Port)
}

// ServiceReachable dials the service once to check that something is listening.
func (s *Service) ServiceReachable() error {
	if s.Address == "" || s.Port == "" {
		return fmt.Errorf("service address or port is not set")
	}
	conn, err := net.DialTimeout("tcp", s.Target(), 3*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	return nil
}
