// Package wolfram implements /算: query the WolframAlpha Full Results API and
// return the answer pods as a merged-forward message.
package wolfram

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
)

const apiURL = "https://api.wolframalpha.com/v2/query"

type Plugin struct {
	cfg config.WolframConfig
}

func New(cfg config.WolframConfig) *Plugin { return &Plugin{cfg: cfg} }

func (p *Plugin) Key() string         { return "wolfram" }
func (p *Plugin) DisplayName() string { return "数学求解" }
func (p *Plugin) Toggleable() bool    { return true }
func (p *Plugin) Triggers() []string  { return []string{"算"} }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "/算 <问题>", Description: "调用 WolframAlpha 求解数学问题，结果以合并转发返回"},
	}
}

type queryResult struct {
	QueryResult struct {
		Success bool `json:"success"`
		Tips    struct {
			Text string `json:"text"`
		} `json:"tips"`
		Pods []struct {
			Title   string `json:"title"`
			Subpods []struct {
				Plaintext string `json:"plaintext"`
				Img       struct {
					Src string `json:"src"`
				} `json:"img"`
			} `json:"subpods"`
		} `json:"pods"`
	} `json:"queryresult"`
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if c.Command != "算" {
		return false, nil
	}
	if p.cfg.AppID == "" {
		return true, c.Reply("WolframAlpha API 未配置，请联系管理员。")
	}
	query := strings.TrimSpace(c.Args)
	if query == "" {
		return true, c.Reply("请输入要计算的问题，例如：/算 integrate x^2 dx")
	}

	var data queryResult
	params := url.Values{
		"appid":  {p.cfg.AppID},
		"input":  {query},
		"output": {"json"},
		"units":  {"metric"},
	}
	if err := c.HTTP.GetJSON(c.Ctx, apiURL, params, &data); err != nil {
		return true, c.Send(onebot.Message{c.AtSender(), onebot.Text(" 查询失败，请稍后重试。")})
	}

	result := data.QueryResult
	if !result.Success {
		hint := ""
		if result.Tips.Text != "" {
			hint = "\n提示：" + result.Tips.Text
		}
		return true, c.Send(onebot.Message{
			c.AtSender(),
			onebot.Text(" WolframAlpha 无法理解该问题，请尝试换一种表述。" + hint),
		})
	}
	if len(result.Pods) == 0 {
		return true, c.Send(onebot.Message{c.AtSender(), onebot.Text(" 未获取到结果，请尝试换一种表述。")})
	}

	botUin, botName, err := c.API.GetLoginInfo(c.Ctx)
	if err != nil {
		botUin, botName = c.API.SelfID(), "WolframAlpha"
	}

	nodes := make([]onebot.Segment, 0, len(result.Pods))
	for _, pod := range result.Pods {
		title := pod.Title
		if title == "" {
			title = "未知"
		}
		msg := onebot.Message{onebot.Text(fmt.Sprintf("【%s】\n", title))}
		for _, sub := range pod.Subpods {
			if sub.Img.Src != "" {
				msg = append(msg, onebot.ImageURL(sub.Img.Src))
			}
			if sub.Plaintext != "" {
				msg = append(msg, onebot.Text("\n"+sub.Plaintext))
			}
		}
		nodes = append(nodes, onebot.Node(botName, botUin, msg))
	}
	return true, c.SendForward(nodes)
}
