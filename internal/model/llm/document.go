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

package llm

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"converser/pkg/errors"
	"converser/pkg/message"
)

// DocumentText 供不支持原生文档块的后端使用：文本类格式原样返回，pdf 抽取正文，
// Office 格式返回 UnsupportedFormatError
func DocumentText(d *message.Document) (string, error) {
	switch d.Format {
	case "txt", "md", "csv", "html":
		if !utf8.Valid(d.Bytes) {
			return "", fmt.Errorf("document %s is not valid UTF-8", d.Name)
		}
		return string(d.Bytes), nil
	case "pdf":
		text, err := pdfText(d.Bytes)
		if err != nil {
			return "", fmt.Errorf("document %s: %w", d.Name, err)
		}
		return text, nil
	}
	return "", &errors.UnsupportedFormatError{Ext: d.Format, Kind: "document"}
}

// pdfText 空白页跳过，页与页之间空一行
func pdfText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	r, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	n, err := r.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("pdf page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= n; i++ {
		text, err := pageText(r, i)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func pageText(r *model.PdfReader, num int) (string, error) {
	page, err := r.GetPage(num)
	if err != nil {
		return "", err
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", err
	}
	text, err := ex.ExtractText()
	return strings.TrimSpace(text), err
}
