// SPDX-License-Identifier: Apache-2.0

package wincred

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/akihiro/git-askpass-bridge/internal/backend"
	"github.com/akihiro/git-askpass-bridge/internal/ipc"
)

// Handle executes one helper request against be. It is the helper side of
// the Bridge protocol and never returns secret material in Error.
func Handle(be backend.Backend, req ipc.VaultRequest) ipc.VaultResponse {
	switch req.Action {
	case ipc.ActionGet:
		secret, err := be.Get(req.Service, req.Account)
		if err != nil {
			return failure(err)
		}
		return ipc.VaultResponse{OK: true, Secret: base64.StdEncoding.EncodeToString(secret)}
	case ipc.ActionSet:
		secret, err := base64.StdEncoding.DecodeString(req.Secret)
		if err != nil {
			return ipc.VaultResponse{Error: fmt.Sprintf("decode base64 secret: %v", err)}
		}
		if err := be.Set(req.Service, req.Account, secret); err != nil {
			return failure(err)
		}
		return ipc.VaultResponse{OK: true}
	case ipc.ActionDelete:
		if err := be.Delete(req.Service, req.Account); err != nil {
			return failure(err)
		}
		return ipc.VaultResponse{OK: true}
	default:
		return ipc.VaultResponse{Error: fmt.Sprintf("unknown action: %q", req.Action)}
	}
}

// ServeOne decodes a single request from r, handles it and encodes the
// response to w. A decode failure is reported on w and returned.
func ServeOne(be backend.Backend, r io.Reader, w io.Writer) error {
	var req ipc.VaultRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		_ = json.NewEncoder(w).Encode(ipc.VaultResponse{Error: fmt.Sprintf("decode request: %v", err)})
		return fmt.Errorf("decode request: %w", err)
	}
	return json.NewEncoder(w).Encode(Handle(be, req))
}

func failure(err error) ipc.VaultResponse {
	return ipc.VaultResponse{
		NotFound: errors.Is(err, backend.ErrNotFound),
		Error:    err.Error(),
	}
}
