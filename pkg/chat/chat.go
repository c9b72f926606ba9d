// Package chat implements the scripted sales assistant: a fixed rule table
// matching keywords against canned responses. There is no language
// understanding here, and none is claimed.
package chat

import "strings"

// rule maps trigger keywords to a canned response, first match wins
type rule struct {
	keywords []string
	response string
}

// Responder answers messages from a fixed rule table
type Responder struct {
	rules    []rule
	fallback string
}

// defaultRules is the sales menu of the public site widget
var defaultRules = []rule{
	{
		keywords: []string{"prezzo", "costo", "quanto"},
		response: "Ti mostro i nostri pacchetti: Starter a €1.350/mese con 35.000+ impressions, " +
			"Professional a €2.880/mese con 80.000+ impressions e A/B testing, " +
			"Enterprise Premium a €3.900/mese con tutte le posizioni incluse e account manager dedicato. " +
			"Vuoi un preventivo personalizzato?",
	},
	{
		keywords: []string{"banner", "pubblicità", "advertising"},
		response: "I nostri banner raggiungono un pubblico qualificato di investitori immobiliari. " +
			"Posizioni disponibili: homepage, sidebar, pagine di ricerca e schede immobile. " +
			"Dimmi quale posizione ti interessa e ti preparo i dettagli.",
	},
	{
		keywords: []string{"preventivo", "proposta"},
		response: "Con piacere! Per preparare una proposta su misura mi servono il tuo settore, " +
			"il budget indicativo e la durata della campagna. Lasciami anche un contatto email " +
			"e ti invio tutto entro 24 ore.",
	},
	{
		keywords: []string{"contatto", "telefono", "email"},
		response: "Puoi raggiungerci via email a commerciale@italyre.pro o lasciarmi qui il tuo " +
			"recapito: ti ricontattiamo entro un giorno lavorativo.",
	},
	{
		keywords: []string{"roi", "risultati", "performance"},
		response: "I nostri clienti registrano in media un CTR del 2,8% e un ritorno misurabile " +
			"già dal primo mese. Ogni campagna include una dashboard analytics con views, " +
			"click e conversioni in tempo reale.",
	},
}

const defaultFallback = "Sono qui per aiutarti con la pubblicità immobiliare su ItalyRE: " +
	"chiedimi di prezzi, banner, preventivi o risultati delle campagne."

// NewResponder creates a responder with the default sales rule table
func NewResponder() *Responder {
	return &Responder{rules: defaultRules, fallback: defaultFallback}
}

// Reply returns the canned response for the first rule whose keyword appears
// in the message, or the fallback response when nothing matches
func (r *Responder) Reply(message string) string {
	low := strings.ToLower(message)
	for _, rl := range r.rules {
		for _, kw := range rl.keywords {
			if strings.Contains(low, kw) {
				return rl.response
			}
		}
	}
	return r.fallback
}
