package rpc

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/aisopod/internal/pairing"
	"github.com/haasonsaas/aisopod/pkg/models"
)

type pairingChannelParams struct {
	Channel string `json:"channel"`
}

type pairingQRParams struct {
	Code string `json:"code"`
	Size int    `json:"size,omitempty"`
}

type pairingApproveParams struct {
	Channel string `json:"channel"`
	Code    string `json:"code"`
}

type pairingAllowlistParams struct {
	Channel string `json:"channel"`
	Entry   string `json:"entry"`
}

func registerPairingMethods(d *Dispatcher, svc *Services) {
	d.RegisterMethod("pairing.list", ScopePairing, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p pairingChannelParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		requests, err := svc.Pairing.ListRequests(models.ChannelType(p.Channel))
		if err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return map[string]any{"requests": requests}, nil
	})

	d.RegisterMethod("pairing.approve", ScopePairing, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p pairingApproveParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		id, req, err := svc.Pairing.ApproveCode(models.ChannelType(p.Channel), p.Code)
		if err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return map[string]any{"id": id, "request": req}, nil
	})

	d.RegisterMethod("pairing.allowlist", ScopePairing, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p pairingChannelParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		allow, err := svc.Pairing.GetAllowlist(models.ChannelType(p.Channel))
		if err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return map[string]any{"allowlist": allow}, nil
	})

	d.RegisterMethod("pairing.allowlist.add", ScopePairing, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p pairingAllowlistParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if err := svc.Pairing.AddToAllowlist(models.ChannelType(p.Channel), p.Entry); err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return map[string]any{"added": true}, nil
	})

	d.RegisterMethod("pairing.allowlist.remove", ScopePairing, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p pairingAllowlistParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if err := svc.Pairing.RemoveFromAllowlist(models.ChannelType(p.Channel), p.Entry); err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return map[string]any{"removed": true}, nil
	})

	d.RegisterMethod("pairing.qrcode", ScopePairing, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p pairingQRParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.Code == "" {
			return nil, newError(CodeInvalidParams, "code is required")
		}
		dataURL, err := pairing.QRCodeDataURL(p.Code, p.Size)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return map[string]any{"data_url": dataURL}, nil
	})
}
