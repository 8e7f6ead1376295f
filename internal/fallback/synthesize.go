package fallback

import "strings"

// Replies sent to the customer.
const (
	MsgPricesHeader      = "Aqui estão os valores:"
	MsgAddToCart         = "Quer que eu adicione ao carrinho?"
	MsgPricesUnavailable = "Não consegui obter os preços agora. Pode repetir?"
	MsgUnavailable       = "Não temos esse produto disponível no momento. Quer outro?"
	MsgNotFound          = "Não achei esse produto. Pode descrever de outra forma?"
	MsgGeneric           = "Desculpe, não consegui processar sua solicitação. Pode repetir?"
)

// Rule names the branch that produced a reply.
type Rule string

const (
	RulePrices            Rule = "prices"
	RulePricesUnavailable Rule = "prices_unavailable"
	RuleAlternatives      Rule = "alternatives"
	RuleUnavailable       Rule = "unavailable"
	RuleNotFound          Rule = "not_found"
	RuleGeneric           Rule = "generic"
)

// Reply is a synthesized answer.
type Reply struct {
	Rule Rule   `json:"rule"`
	Text string `json:"text"`
}

const maxAlternatives = 2

// Decide picks a reply. The first matching branch wins: any success signal,
// then empty stock, then not found, then a generic apology.
func Decide(outcomes []Outcome) Reply {
	var (
		success    bool
		empty      bool
		notFound   bool
		priced     []PricedItem
		missing    []string
		candidates []string
	)

	for _, o := range outcomes {
		switch v := o.(type) {
		case Success:
			success = true
			priced = append(priced, v.Items...)
		case PartialBatch:
			if len(v.Found) > 0 {
				success = true
				priced = append(priced, v.Found...)
			}
			missing = append(missing, v.Missing...)
		case Empty:
			empty = true
		case Candidates:
			candidates = append(candidates, v.Names...)
		case NotFound:
			notFound = true
		}
	}

	switch {
	case success && len(priced) == 0:
		return Reply{Rule: RulePricesUnavailable, Text: MsgPricesUnavailable}
	case success:
		return Reply{Rule: RulePrices, Text: priceReply(priced, missing)}
	case empty && len(candidates) > 0:
		if len(candidates) > maxAlternatives {
			candidates = candidates[:maxAlternatives]
		}
		text := "Não temos esse produto disponível. Temos: " + strings.Join(candidates, ", ") + ". Quer algum desses?"
		return Reply{Rule: RuleAlternatives, Text: text}
	case empty:
		return Reply{Rule: RuleUnavailable, Text: MsgUnavailable}
	case notFound:
		return Reply{Rule: RuleNotFound, Text: MsgNotFound}
	default:
		return Reply{Rule: RuleGeneric, Text: MsgGeneric}
	}
}

// Synthesize returns the reply text for outcomes.
func Synthesize(outcomes []Outcome) string {
	return Decide(outcomes).Text
}

// SynthesizeText classifies raw tool outputs and synthesizes a reply.
func SynthesizeText(toolOutputs []string) string {
	return Synthesize(ClassifyAll(toolOutputs))
}

func priceReply(items []PricedItem, missing []string) string {
	lines := make([]string, 0, len(items)+3)
	lines = append(lines, MsgPricesHeader)
	for _, it := range items {
		lines = append(lines, "* "+it.String())
	}
	if len(missing) > 0 {
		lines = append(lines, "\nNão encontrei: "+strings.Join(missing, ", ")+".")
	}
	lines = append(lines, MsgAddToCart)
	return strings.Join(lines, "\n")
}
