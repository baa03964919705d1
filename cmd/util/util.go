package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/uorm/lib/logging"
	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/ValentinKolb/uorm/rpc/serializer"
	"github.com/ValentinKolb/uorm/rpc/transport"
	"github.com/ValentinKolb/uorm/rpc/transport/http"
	"github.com/ValentinKolb/uorm/rpc/transport/tcp"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes every flag settable as UORM_<FLAG>
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("uorm")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging installs the zap logger with the configured level
func InitLogging() error {
	return logging.Init(viper.GetString("log-level"))
}

// --------------------------------------------------------------------------
// RPC client
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds the flags needed to reach a cache server to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the cache server. Multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint (tcp only)"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try a request"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer in KB (tcp only)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer in KB (tcp only)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval in seconds (tcp only)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time in seconds, -1 keeps the system default (tcp only)"))
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.TransportConfig{
			Endpoints:              splitList(viper.GetString("transport-endpoints")),
			RetryCount:             viper.GetInt("transport-retries"),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			TCPNoDelay:             viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec:        viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:           viper.GetInt("transport-tcp-linger"),
			WriteBufferSize:        viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:         viper.GetInt("transport-read-buffer") * 1024,
		},
	}
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return viper.GetUint64("shard")
}

// GetSerializer creates the serializer selected by --serializer
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.ByName(viper.GetString("serializer"))
}

// GetClientTransport creates the client transport selected by --transport
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected http or tcp)", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport selected by --transport
func GetServerTransport(bufferSize, workersPerConn int) (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(bufferSize, workersPerConn), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected http or tcp)", viper.GetString("transport"))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
