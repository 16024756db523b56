package dto

type SearchRequest struct {
	Query      string `query:"q" validate:"required,max=200"`
	DocumentId string `query:"document_id" validate:"omitempty,uuid"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

type SearchResponse struct {
	Knowledge []KnowledgeResponse `json:"knowledge"`
	Cards     []CardResponse      `json:"cards"`
}

type SimilarKnowledgeRequest struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=50"`
}

type SimilarKnowledgeResponse struct {
	Knowledge KnowledgeResponse `json:"knowledge"`
	// Similarity is 1 minus the cosine distance.
	Similarity float64 `json:"similarity"`
}
