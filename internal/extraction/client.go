package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"

	"docqa/models"
)

const extractionModel = "gpt-4o"

// Result is the structured information an extraction call returns for one
// chunk of text. The JSON tags match the function schema the model fills in.
type Result struct {
	Lot                 string            `json:"lot"`
	SubLot              string            `json:"sous_lot"`
	Materials           []string          `json:"materiaux"`
	Equipment           []string          `json:"equipements"`
	ExecutionMethods    []string          `json:"methodes_exec"`
	PerformanceCriteria []string          `json:"criteres_perf"`
	Location            string            `json:"localisation"`
	Quantities          []models.Quantity `json:"quantitatifs"`
}

// Client extracts structured tender data from text through an OpenAI
// function call.
type Client struct {
	http   *http.Client
	apiKey string
}

func NewClient() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	client := retryablehttp.NewClient()
	client.Logger = nil

	return &Client{
		http:   client.StandardClient(),
		apiKey: apiKey,
	}, nil
}

const extractionSystemPrompt = `Tu es un expert en analyse de documents techniques de construction (DCE - Dossier de Consultation des Entreprises).

Ton rôle est d'extraire les informations structurées suivantes du texte fourni :
- Nom du lot ou sous-lot
- Matériaux et équipements nécessaires
- Méthodes d'exécution recommandées
- Critères de performance
- Localisation (zones, niveaux, bâtiments...)
- Quantitatifs détectés (quantité, unité, objet)

Règles importantes :
- Extrais uniquement les informations explicitement mentionnées
- Pour les quantitatifs, cherche des patterns comme "10 m²", "50 ml", "20 unités", etc.
- Si une information n'est pas présente, utilise une valeur par défaut appropriée
- Sois précis et concis dans tes extractions`

// extractFunction is the schema the model is forced to fill in. Keeping it
// as a raw JSON literal makes it easy to diff against the provider docs.
var extractFunction = json.RawMessage(`{
	"name": "extract_dce_info",
	"description": "Extrait les informations structurées d'un document DCE",
	"parameters": {
		"type": "object",
		"properties": {
			"lot": {"type": "string", "description": "Nom du lot principal"},
			"sous_lot": {"type": "string", "description": "Nom du sous-lot ou spécialité"},
			"materiaux": {"type": "array", "items": {"type": "string"}, "description": "Liste des matériaux mentionnés"},
			"equipements": {"type": "array", "items": {"type": "string"}, "description": "Liste des équipements nécessaires"},
			"methodes_exec": {"type": "array", "items": {"type": "string"}, "description": "Méthodes d'exécution recommandées"},
			"criteres_perf": {"type": "array", "items": {"type": "string"}, "description": "Critères de performance exigés"},
			"localisation": {"type": "string", "description": "Localisation ou zone d'intervention"},
			"quantitatifs": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"label": {"type": "string", "description": "Description de l'élément"},
						"qty": {"type": "number", "description": "Quantité numérique"},
						"unite": {"type": "string", "description": "Unité de mesure"}
					},
					"required": ["label", "qty", "unite"]
				},
				"description": "Quantitatifs détectés dans le texte"
			}
		},
		"required": ["lot", "sous_lot", "materiaux", "equipements", "methodes_exec", "criteres_perf", "localisation", "quantitatifs"]
	}
}`)

// ExtractChunk runs the extraction function call over one chunk of text.
func (c *Client) ExtractChunk(ctx context.Context, chunk string) (*Result, error) {
	body, err := json.Marshal(map[string]any{
		"model": extractionModel,
		"messages": []map[string]string{
			{"role": "system", "content": extractionSystemPrompt},
			{"role": "user", "content": "Analyse ce texte DCE et extrais les informations structurées :\n\n" + chunk},
		},
		"functions":     []json.RawMessage{extractFunction},
		"function_call": map[string]string{"name": "extract_dce_info"},
		// Extraction must be literal, not creative.
		"temperature": 0.1,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %v", c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction request failed: %v: %v", resp.Status, string(b))
	}

	var res struct {
		Choices []struct {
			Message struct {
				FunctionCall *struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function_call"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, err
	}

	if len(res.Choices) == 0 || res.Choices[0].Message.FunctionCall == nil {
		return nil, fmt.Errorf("extraction response carries no function call")
	}

	call := res.Choices[0].Message.FunctionCall
	if call.Name != "extract_dce_info" {
		return nil, fmt.Errorf("unexpected function call %q", call.Name)
	}

	var result Result
	if err := json.Unmarshal([]byte(call.Arguments), &result); err != nil {
		return nil, fmt.Errorf("extraction arguments do not parse: %w", err)
	}

	return &result, nil
}
