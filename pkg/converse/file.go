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

package converse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"converser/pkg/errors"
	"converser/pkg/message"
	"converser/pkg/stream"
)

// ContentKind 文件内容类别
type ContentKind string

const (
	KindImage    ContentKind = "image"
	KindDocument ContentKind = "document"
)

var (
	imageFormats    = []string{"png", "jpeg", "gif", "webp"}
	documentFormats = []string{"pdf", "csv", "doc", "docx", "xls", "xlsx", "html", "txt", "md"}

	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-\(\)\[\]]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

// Formats 返回类别允许的扩展名
func Formats(kind ContentKind) []string {
	switch kind {
	case KindImage:
		return slices.Clone(imageFormats)
	case KindDocument:
		return slices.Clone(documentFormats)
	}
	return nil
}

// ParseContentKind 解析 image / document
func ParseContentKind(s string) (ContentKind, error) {
	switch k := ContentKind(strings.ToLower(s)); k {
	case KindImage, KindDocument:
		return k, nil
	}
	return "", errors.Wrapf(errors.ErrInvalidArg, "content kind %q (want image or document)", s)
}

// CheckFormat 扩展名（不区分大小写）须在类别允许集合内，返回小写格式名
func CheckFormat(kind ContentKind, ext string) (string, error) {
	format := strings.ToLower(strings.TrimPrefix(ext, "."))
	allowed := Formats(kind)
	if allowed == nil {
		return "", errors.Wrapf(errors.ErrInvalidArg, "content kind %q", kind)
	}
	if !slices.Contains(allowed, format) {
		return "", &errors.UnsupportedFormatError{Ext: format, Kind: string(kind)}
	}
	return format, nil
}

// SanitizeFileName 取文件名：主干中字母数字、空白、- ( ) [ ] 以外的字符替换为 "_"，
// 连续空白压缩为一个空格，扩展名原样保留
func SanitizeFileName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = unsafeNameChars.ReplaceAllString(stem, "_")
	stem = whitespaceRuns.ReplaceAllString(stem, " ")
	return stem + ext
}

// BuildFileMessage 构造 user[Text(userText), Image|Document]
func BuildFileMessage(path string, kind ContentKind, userText string) (message.Message, error) {
	format, err := CheckFormat(kind, filepath.Ext(path))
	if err != nil {
		return message.Message{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return message.Message{}, fmt.Errorf("read %s: %w", path, err)
	}
	return FileMessage(filepath.Base(path), kind, format, data, userText), nil
}

// FileMessage 用已读取的内容构造文件消息（HTTP 上传等场景）
func FileMessage(fileName string, kind ContentKind, format string, data []byte, userText string) message.Message {
	if userText == "" {
		userText = DefaultUserFileText
	}
	var block message.ContentBlock
	if kind == KindImage {
		block = message.ImageBlock(format, data)
	} else {
		block = message.DocumentBlock(format, SanitizeFileName(fileName), data)
	}
	return message.User(message.Text(userText), block)
}

// FromFile 以文件为内容发起批量调用
func (c *Converser) FromFile(ctx context.Context, path string, kind ContentKind, userText string) (*Response, error) {
	msg, err := BuildFileMessage(path, kind, userText)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, msg)
}

// FromFileStream 以文件为内容发起流式调用
func (c *Converser) FromFileStream(ctx context.Context, path string, kind ContentKind, userText string) (*stream.Reducer, error) {
	msg, err := BuildFileMessage(path, kind, userText)
	if err != nil {
		return nil, err
	}
	return c.SendStream(ctx, msg)
}
