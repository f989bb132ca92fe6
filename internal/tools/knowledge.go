package tools

import (
	"context"
	"strings"
)

// kbEntry is one knowledge-base article.
type kbEntry struct {
	Question string
	Answer   string
	Category string
	Keywords []string
}

// KnowledgeProvider searches a small built-in FAQ corpus. It is the fallback
// knowledge source when no external knowledge service is wired in.
type KnowledgeProvider struct {
	entries []kbEntry
}

// NewKnowledgeProvider builds the provider with the built-in corpus.
func NewKnowledgeProvider() *KnowledgeProvider {
	return &KnowledgeProvider{entries: []kbEntry{
		{
			Question: "如何查询订单状态？",
			Answer:   "您可以在「我的订单」页面查看订单状态，或提供订单号由客服代查。",
			Category: "订单问题",
			Keywords: []string{"订单", "状态", "查询"},
		},
		{
			Question: "如何申请退款？",
			Answer:   "收到商品7天内可在订单详情页发起退款申请，审核通过后3-5个工作日原路退回。",
			Category: "订单问题",
			Keywords: []string{"退款", "退货", "申请"},
		},
		{
			Question: "忘记密码怎么办？",
			Answer:   "请在登录页点击「忘记密码」，通过注册手机号或邮箱验证后重置。",
			Category: "技术支持",
			Keywords: []string{"密码", "登录", "重置"},
		},
		{
			Question: "发票如何开具？",
			Answer:   "下单时勾选「需要发票」并填写抬头，电子发票将在发货后发送到您的邮箱。",
			Category: "产品咨询",
			Keywords: []string{"发票", "抬头", "开具"},
		},
		{
			Question: "配送需要多长时间？",
			Answer:   "一般城市48小时内送达，偏远地区3-5天。可在订单页查看实时物流。",
			Category: "产品咨询",
			Keywords: []string{"配送", "物流", "多久", "送达"},
		},
	}}
}

func (p *KnowledgeProvider) Kind() string { return "knowledge_base" }

// Invoke expects args["query"], optionally args["category"].
func (p *KnowledgeProvider) Invoke(_ context.Context, args map[string]string) Result {
	query := strings.ToLower(args["query"])
	if query == "" {
		return Fail("knowledge search requires a query")
	}
	category := args["category"]

	var matches []map[string]interface{}
	for _, e := range p.entries {
		if category != "" && e.Category != category {
			continue
		}
		if p.matches(query, e) {
			matches = append(matches, map[string]interface{}{
				"question": e.Question,
				"answer":   e.Answer,
				"category": e.Category,
			})
		}
	}

	return Ok(map[string]interface{}{
		"query":   args["query"],
		"matches": matches,
		"count":   len(matches),
	})
}

func (p *KnowledgeProvider) matches(query string, e kbEntry) bool {
	if strings.Contains(strings.ToLower(e.Question), query) {
		return true
	}
	for _, kw := range e.Keywords {
		if strings.Contains(query, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
