package sentinel

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PricingAnswer is the cost topic answer. "prix" is the first keyword of the first
// default topic, so any question mentioning it gets this text verbatim.
const PricingAnswer = `Grille tarifaire NEXUS :
- Starter : 49€/mois, 1 agent IA, 1 000 appels inclus
- Business : 149€/mois, 5 agents IA, 10 000 appels inclus
- Enterprise : sur devis, agents illimités et SLA dédié
Au-delà du forfait, chaque appel IA est facturé 0,002€.`

// FallbackAnswer lists the topics the local responder knows about.
const FallbackAnswer = `Je peux vous aider sur les sujets suivants :
- Coûts et prix : « Combien coûte un tenant ? »
- Erreurs : « Pourquoi ai-je des erreurs API ? »
- Performance : « Le système est-il lent ? »
- Sécurité : « Y a-t-il des menaces actives ? »
- Santé : « Quel est le score de santé ? »
Reformulez votre question avec l'un de ces mots-clés.`

// FAQTopic is one keyword group with its canned answer.
type FAQTopic struct {
	Name     string
	Keywords []string
	Answer   string
}

// FAQAnswer is the responder output.
type FAQAnswer struct {
	Topic    string `json:"topic"`
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Source   string `json:"source"`
}

// DefaultFAQTopics returns the built-in topics in match order.
func DefaultFAQTopics() []FAQTopic {
	return []FAQTopic{
		{
			Name:     "cost",
			Keywords: []string{"prix", "cout", "cost", "price", "tarif", "facturation", "depense"},
			Answer:   PricingAnswer,
		},
		{
			Name:     "error",
			Keywords: []string{"erreur", "error", "echec", "bug", "crash", "panne"},
			Answer: `Analyse des erreurs :
Les erreurs récentes proviennent surtout des appels vers les fournisseurs IA.
Vérifiez l'onglet Sécurité pour les journaux détaillés et relancez une détection
d'anomalies si le taux dépasse 2 %.`,
		},
		{
			Name:     "performance",
			Keywords: []string{"performance", "lent", "latence", "latency", "slow", "rapide", "cache"},
			Answer: `Performance :
La latence moyenne reste sous 400 ms. Le cache d'optimisation absorbe une part
importante des requêtes répétées ; consultez ses statistiques avant d'augmenter
la capacité.`,
		},
		{
			Name:     "security",
			Keywords: []string{"securite", "security", "menace", "threat", "attaque", "intrusion", "blocage"},
			Answer: `Sécurité :
Sentinel surveille les tentatives de connexion et les blocages d'IP. Les événements
critiques apparaissent dans le journal de sécurité avec leur niveau de gravité.`,
		},
		{
			Name:     "health",
			Keywords: []string{"sante", "health", "score", "etat", "status", "disponibilite"},
			Answer: `Santé du système :
Le score de santé combine disponibilité, taux d'erreur et consommation. Un score
inférieur à 70 déclenche des recommandations dans le panneau Intelligence.`,
		},
	}
}

// FAQResponder answers free-text questions by keyword when the backend explainer is
// unavailable.
type FAQResponder struct {
	topics   []FAQTopic
	fallback string
}

// NewFAQResponder builds a responder. Nil topics selects the defaults.
func NewFAQResponder(topics []FAQTopic) *FAQResponder {
	if topics == nil {
		topics = DefaultFAQTopics()
	}
	folded := make([]FAQTopic, len(topics))
	for i, topic := range topics {
		keywords := make([]string, 0, len(topic.Keywords))
		for _, keyword := range topic.Keywords {
			if k := foldText(keyword); k != "" {
				keywords = append(keywords, k)
			}
		}
		folded[i] = FAQTopic{Name: topic.Name, Keywords: keywords, Answer: topic.Answer}
	}
	return &FAQResponder{topics: folded, fallback: FallbackAnswer}
}

// Answer returns the first topic whose keyword appears in question, or the menu.
func (r *FAQResponder) Answer(question string) FAQAnswer {
	text := foldText(question)
	for _, topic := range r.topics {
		for _, keyword := range topic.Keywords {
			if strings.Contains(text, keyword) {
				return FAQAnswer{Topic: topic.Name, Text: topic.Answer, Source: "local"}
			}
		}
	}
	return FAQAnswer{Topic: "menu", Text: r.fallback, Fallback: true, Source: "local"}
}

func foldText(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		folded = value
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
