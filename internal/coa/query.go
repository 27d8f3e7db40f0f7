package coa

const metaobjectsQuery = `
query COAs($type: String!, $first: Int!, $after: String) {
  metaobjects(type: $type, first: $first, after: $after, sortKey: "updated_at", reverse: true) {
    edges {
      node {
        id
        fields {
          key
          value
          reference {
            ... on GenericFile { url }
            ... on MediaImage { image { url } }
          }
        }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type metaobjectConnection struct {
	Edges []struct {
		Node MetaobjectNode `json:"node"`
	} `json:"edges"`
	PageInfo PageInfo `json:"pageInfo"`
}

type metaobjectsData struct {
	Metaobjects metaobjectConnection `json:"metaobjects"`
}

func pageVariables(metaobjectType string, first int, after string) map[string]any {
	vars := map[string]any{
		"type":  metaobjectType,
		"first": first,
		"after": nil,
	}
	if after != "" {
		vars["after"] = after
	}
	return vars
}
