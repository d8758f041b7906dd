package utils

import (
	"time"

	"github.com/srand/jolt/grid/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

type GRPCOptions struct {
	// The interval between PING frames.
	KeepAliveTime *time.Duration `mapstructure:"keep_alive_time"`
	// The timeout for a PING frame to be acknowledged.
	KeepAliveTimeout *time.Duration `mapstructure:"keep_alive_timeout"`
	// Send keepalive pings even if there are no active streams (client).
	KeepAliveWithoutCalls *bool `mapstructure:"keep_alive_without_calls"`
	// Are clients allowed to send keepalive pings without active streams (server).
	PermitKeepAliveWithoutCalls *bool `mapstructure:"permit_keep_alive_without_calls"`
	// Minimum allowed time between a server receiving successive ping frames.
	PermitKeepAliveTime *time.Duration `mapstructure:"permit_keep_alive_time"`
	// Maximum size of a received message, e.g. "64MiB".
	MaxMessageSize string `mapstructure:"max_message_size"`
}

func (o *GRPCOptions) maxMessageSize() int {
	if o.MaxMessageSize == "" {
		return 0
	}
	size, err := ParseSize(o.MaxMessageSize)
	if err != nil {
		log.Warn("ignoring grpc max_message_size:", err)
		return 0
	}
	return int(size)
}

func (o *GRPCOptions) ToServerOptions() []grpc.ServerOption {
	opts := []grpc.ServerOption{}

	if o.KeepAliveTime != nil || o.KeepAliveTimeout != nil {
		params := keepalive.ServerParameters{}
		if o.KeepAliveTime != nil {
			params.Time = *o.KeepAliveTime
		}
		if o.KeepAliveTimeout != nil {
			params.Timeout = *o.KeepAliveTimeout
		}
		opts = append(opts, grpc.KeepaliveParams(params))
	}

	if o.PermitKeepAliveWithoutCalls != nil || o.PermitKeepAliveTime != nil {
		policy := keepalive.EnforcementPolicy{}
		if o.PermitKeepAliveWithoutCalls != nil {
			policy.PermitWithoutStream = *o.PermitKeepAliveWithoutCalls
		}
		if o.PermitKeepAliveTime != nil {
			policy.MinTime = *o.PermitKeepAliveTime
		}
		opts = append(opts, grpc.KeepaliveEnforcementPolicy(policy))
	}

	if size := o.maxMessageSize(); size > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(size), grpc.MaxSendMsgSize(size))
	}

	return opts
}

// ToDialOptions returns client options. Connections are plaintext,
// the grid runs on a trusted network.
func (o *GRPCOptions) ToDialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	if o.KeepAliveTime != nil || o.KeepAliveTimeout != nil || o.KeepAliveWithoutCalls != nil {
		params := keepalive.ClientParameters{}
		if o.KeepAliveTime != nil {
			params.Time = *o.KeepAliveTime
		}
		if o.KeepAliveTimeout != nil {
			params.Timeout = *o.KeepAliveTimeout
		}
		if o.KeepAliveWithoutCalls != nil {
			params.PermitWithoutStream = *o.KeepAliveWithoutCalls
		}
		opts = append(opts, grpc.WithKeepaliveParams(params))
	}

	if size := o.maxMessageSize(); size > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(size)))
	}

	return opts
}

func (o *GRPCOptions) Log() {
	log.Info("  gRPC options:")
	if o.KeepAliveTime != nil {
		log.Info("    keep_alive_time =", *o.KeepAliveTime)
	}
	if o.KeepAliveTimeout != nil {
		log.Info("    keep_alive_timeout =", *o.KeepAliveTimeout)
	}
	if o.KeepAliveWithoutCalls != nil {
		log.Info("    keep_alive_without_calls =", *o.KeepAliveWithoutCalls)
	}
	if o.PermitKeepAliveWithoutCalls != nil {
		log.Info("    permit_keep_alive_without_calls =", *o.PermitKeepAliveWithoutCalls)
	}
	if o.PermitKeepAliveTime != nil {
		log.Info("    permit_keep_alive_time =", *o.PermitKeepAliveTime)
	}
	if o.MaxMessageSize != "" {
		log.Info("    max_message_size =", o.MaxMessageSize)
	}
}
