// Package translate implements /翻译 on the Tencent Cloud machine translation
// API, including the TC3-HMAC-SHA256 request signing the API requires.
package translate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/plugin"
	"github.com/functionx37/yiyin-bot/internal/web"
)

const (
	tmtEndpoint = "tmt.tencentcloudapi.com"
	tmtService  = "tmt"
	tmtVersion  = "2018-03-21"
	tmtAction   = "TextTranslate"
	tmtRegion   = "ap-guangzhou"
)

var langMap = map[string]string{
	"中文": "zh", "中": "zh", "zh": "zh",
	"英文": "en", "英": "en", "en": "en",
	"日文": "ja", "日": "ja", "日语": "ja", "ja": "ja",
}

var langDisplay = map[string]string{"zh": "中文", "en": "英文", "ja": "日文"}

func supportedLangs() string {
	return "中文、英文、日文"
}

type Plugin struct {
	creds config.TencentConfig
	http  *web.Client
}

func New(creds config.TencentConfig, http *web.Client) *Plugin {
	return &Plugin{creds: creds, http: http}
}

func (p *Plugin) Key() string         { return "translate" }
func (p *Plugin) DisplayName() string { return "翻译" }
func (p *Plugin) Toggleable() bool    { return true }
func (p *Plugin) Triggers() []string  { return []string{"翻译"} }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "/翻译 <目标语言> <文本>", Description: "中/英/日互译，自动检测源语言"},
	}
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if c.Command != "翻译" {
		return false, nil
	}
	if p.creds.SecretID == "" || p.creds.SecretKey == "" {
		return true, c.Reply("翻译 API 未配置，请联系管理员。")
	}

	raw := strings.TrimSpace(c.Args)
	if raw == "" {
		return true, c.Reply(fmt.Sprintf("用法：/翻译 <目标语言> <文本>\n支持语言：%s\n示例：/翻译 英文 你好世界", supportedLangs()))
	}
	lang, text := splitLangText(raw)
	if text == "" {
		return true, c.Reply("请同时提供目标语言和待翻译文本，例如：/翻译 英文 你好世界")
	}
	target, ok := langMap[lang]
	if !ok {
		return true, c.Reply(fmt.Sprintf("不支持的目标语言「%s」\n支持的语言：%s", lang, supportedLangs()))
	}

	result, err := p.Translate(c.Ctx, text, target, "auto")
	if err != nil {
		return true, c.Reply("翻译失败，请稍后重试。")
	}
	return true, c.Reply(fmt.Sprintf("【翻译 → %s】\n%s", langDisplay[target], result))
}

// splitLangText breaks the argument into the language token and the text,
// splitting on the first whitespace run of any kind.
func splitLangText(raw string) (string, string) {
	idx := strings.IndexFunc(raw, unicode.IsSpace)
	if idx < 0 {
		return raw, ""
	}
	return raw[:idx], strings.TrimSpace(raw[idx:])
}

type tmtResponse struct {
	Response struct {
		TargetText string `json:"TargetText"`
		Error      *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
	} `json:"Response"`
}

// Translate calls the TextTranslate API. Other plugins may use it directly.
func (p *Plugin) Translate(ctx context.Context, text, target, source string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"SourceText": text,
		"Source":     source,
		"Target":     target,
		"ProjectId":  0,
	})
	if err != nil {
		return "", err
	}

	headers := buildHeaders(p.creds, payload, time.Now().Unix())
	body, err := p.http.PostRaw(ctx, "https://"+tmtEndpoint, headers, payload)
	if err != nil {
		return "", fmt.Errorf("tmt request: %w", err)
	}

	var resp tmtResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.Response.Error != nil {
		return "", fmt.Errorf("tmt error %s: %s", resp.Response.Error.Code, resp.Response.Error.Message)
	}
	return resp.Response.TargetText, nil
}

func hmacSHA256(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// buildHeaders produces the TC3-HMAC-SHA256 signed request headers for the
// exact payload bytes that will be posted.
func buildHeaders(creds config.TencentConfig, payload []byte, timestamp int64) map[string]string {
	date := time.Unix(timestamp, 0).UTC().Format("2006-01-02")

	canonicalRequest := strings.Join([]string{
		"POST",
		"/",
		"",
		"content-type:application/json; charset=utf-8",
		"host:" + tmtEndpoint,
		"x-tc-action:" + strings.ToLower(tmtAction),
		"",
		"content-type;host;x-tc-action",
		sha256Hex(payload),
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/tc3_request", date, tmtService)
	stringToSign := strings.Join([]string{
		"TC3-HMAC-SHA256",
		fmt.Sprintf("%d", timestamp),
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	secretDate := hmacSHA256([]byte("TC3"+creds.SecretKey), date)
	secretService := hmacSHA256(secretDate, tmtService)
	secretSigning := hmacSHA256(secretService, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(secretSigning, stringToSign))

	authorization := fmt.Sprintf(
		"TC3-HMAC-SHA256 Credential=%s/%s, SignedHeaders=content-type;host;x-tc-action, Signature=%s",
		creds.SecretID, credentialScope, signature)

	return map[string]string{
		"Authorization":  authorization,
		"Content-Type":   "application/json; charset=utf-8",
		"Host":           tmtEndpoint,
		"X-TC-Action":    tmtAction,
		"X-TC-Version":   tmtVersion,
		"X-TC-Timestamp": fmt.Sprintf("%d", timestamp),
		"X-TC-Region":    tmtRegion,
	}
}
