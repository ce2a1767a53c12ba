package elasticsearch

// AnalyzerName is the bilingual analyzer applied to text fields.
const AnalyzerName = "ru_en"

// IndexMapping returns the index settings and strict mapping for documents.
// A dimension of 0 leaves the dense_vector dims to be inferred from the
// first indexed vector.
func IndexMapping(textDims, imageDims int) map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"refresh_interval": "1s",
			"analysis": map[string]interface{}{
				"filter": map[string]interface{}{
					"english_stop":               map[string]interface{}{"type": "stop", "stopwords": "_english_"},
					"english_stemmer":            map[string]interface{}{"type": "stemmer", "language": "english"},
					"english_possessive_stemmer": map[string]interface{}{"type": "stemmer", "language": "possessive_english"},
					"russian_stop":               map[string]interface{}{"type": "stop", "stopwords": "_russian_"},
					"russian_stemmer":            map[string]interface{}{"type": "stemmer", "language": "russian"},
				},
				"analyzer": map[string]interface{}{
					AnalyzerName: map[string]interface{}{
						"tokenizer": "standard",
						"filter": []string{
							"lowercase",
							"english_stop",
							"english_stemmer",
							"english_possessive_stemmer",
							"russian_stop",
							"russian_stemmer",
						},
					},
				},
			},
		},
		"mappings": map[string]interface{}{
			"dynamic": "strict",
			"properties": map[string]interface{}{
				"document_id":     map[string]interface{}{"type": "keyword"},
				"title":           analyzedText(),
				"text_content":    analyzedText(),
				"text_embedding":  denseVector(textDims),
				"image_embedding": denseVector(imageDims),
				"metadata": map[string]interface{}{
					"type": "nested",
					"properties": map[string]interface{}{
						"author":       map[string]interface{}{"type": "text", "analyzer": "standard"},
						"created_date": map[string]interface{}{"type": "date", "format": "strict_date"},
						"tags":         map[string]interface{}{"type": "keyword"},
						"file_type":    map[string]interface{}{"type": "keyword"},
					},
				},
				"images": map[string]interface{}{
					"type": "nested",
					"properties": map[string]interface{}{
						"image_id":        map[string]interface{}{"type": "keyword"},
						"ocr_text":        analyzedText(),
						"image_embedding": denseVector(imageDims),
						"position":        map[string]interface{}{"type": "keyword"},
						"image_path":      map[string]interface{}{"type": "keyword"},
					},
				},
			},
		},
	}
}

func analyzedText() map[string]interface{} {
	return map[string]interface{}{"type": "text", "analyzer": AnalyzerName}
}

func denseVector(dims int) map[string]interface{} {
	v := map[string]interface{}{
		"type":       "dense_vector",
		"index":      true,
		"similarity": "cosine",
	}
	if dims > 0 {
		v["dims"] = dims
	}
	return v
}
