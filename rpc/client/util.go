package client

import (
	"fmt"

	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/ValentinKolb/uorm/rpc/serializer"
	"github.com/ValentinKolb/uorm/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter holds everything needed to talk to one shard of a cache server
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends req to the shard and returns the decoded response.
// Errors reported by the server are returned as *store.Error.
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, errors.Wrap(err, "serialize request")
	}

	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "send %s request to shard %d", req.MsgType, a.shardId)
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, errors.Wrap(err, "deserialize response")
	}

	if err := resp.AsError(); err != nil {
		return nil, err
	}

	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
