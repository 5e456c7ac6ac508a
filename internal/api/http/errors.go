// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	stderrors "errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"converser/pkg/errors"
)

// errorBody 统一错误响应
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusOf 错误类别 → HTTP 状态码与错误码
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrInvalidOrder):
		return consts.StatusBadRequest, "invalid_order"
	case errors.Is(err, errors.ErrUnsupportedFormat):
		return consts.StatusBadRequest, "unsupported_format"
	case errors.Is(err, errors.ErrMissingDocstring):
		return consts.StatusBadRequest, "missing_docstring"
	case errors.Is(err, errors.ErrInvalidArg):
		return consts.StatusBadRequest, "invalid_argument"
	case errors.Is(err, errors.ErrNotFound):
		return consts.StatusNotFound, "not_found"
	case errors.Is(err, errors.ErrUnsupportedStopReason):
		return consts.StatusBadGateway, "unsupported_stop_reason"
	case errors.Is(err, errors.ErrUnrecognizedStreamEvent):
		return consts.StatusBadGateway, "unrecognized_stream_event"
	case stderrors.Is(err, context.DeadlineExceeded):
		return consts.StatusGatewayTimeout, "timeout"
	default:
		return consts.StatusInternalServerError, "internal"
	}
}

func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status, code := statusOf(err)
	if status >= consts.StatusInternalServerError {
		hlog.CtxErrorf(ctx, "%s %s: %v", c.Method(), c.Path(), err)
	}
	c.JSON(status, errorBody{Error: err.Error(), Code: code})
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, errorBody{Error: msg, Code: "invalid_argument"})
}
