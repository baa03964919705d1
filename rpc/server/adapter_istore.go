package server

import (
	"fmt"

	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/goccy/go-json"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTSet:
		return common.NewSetResponse(s.Set(req.Key, req.Value))
	case common.MsgTSetE:
		return common.NewSetEResponse(s.SetE(req.Key, req.Value, req.TTL()))
	case common.MsgTDelete:
		deleted, err := s.Delete(req.Key)
		return common.NewDeleteResponse(deleted, err)
	case common.MsgTGet:
		val, ok, err := s.Get(req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTHas:
		ok, err := s.Has(req.Key)
		return common.NewHasResponse(ok, err)
	case common.MsgTInfo:
		info, err := s.GetDBInfo()
		if err != nil {
			return common.NewInfoResponse(nil, err)
		}
		data, err := json.Marshal(info)
		return common.NewInfoResponse(data, err)
	default:
		return common.NewErrorResponse(fmt.Sprintf("unsupported message type: %s", req.MsgType))
	}
}
