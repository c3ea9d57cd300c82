package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// collections the item API serves.
var collections = map[string]bool{
	"request":       true,
	"booking":       true,
	"profile":       true,
	"service":       true,
	"chat_messages": true,
}

// relations maps collection fields to the collection they reference.
// "@account" resolves against the directory, "@ref" stays a shallow
// {"id": n} reference. Relations are stored as ids and expanded on read.
var relations = map[string]map[string]string{
	"request":       {"service": "service", "profile": "profile"},
	"booking":       {"request": "request", "technician": "profile"},
	"chat_messages": {"sender": "@account", "request": "@ref"},
	"profile":       {"user": "@account"},
}

// maxExpandDepth stops relation cycles (booking -> request -> ...).
const maxExpandDepth = 4

// handleListItems serves GET /items/:collection with the filter, sort and
// limit subset the SDK uses. The fields parameter is accepted and
// ignored; full documents are always returned.
func (s *Server) handleListItems(c *gin.Context) {
	collection := c.Param("collection")
	if !collections[collection] {
		errorJSON(c, http.StatusNotFound, fmt.Sprintf("unknown collection %q", collection), "COLLECTION_NOT_FOUND")
		return
	}

	docs, err := s.collectionDocs(collection)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "load failed", "INTERNAL")
		return
	}

	docs = s.applyFilters(collection, docs, c.Request.URL.Query())
	applySort(docs, c.Query("sort"))

	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 && limit < len(docs) {
			docs = docs[:limit]
		}
	}

	for i, doc := range docs {
		docs[i] = s.expand(collection, doc, 0)
	}
	dataJSON(c, http.StatusOK, docs)
}

// handleGetItem serves GET /items/:collection/:id.
func (s *Server) handleGetItem(c *gin.Context) {
	collection := c.Param("collection")
	if !collections[collection] {
		errorJSON(c, http.StatusNotFound, fmt.Sprintf("unknown collection %q", collection), "COLLECTION_NOT_FOUND")
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "item id must be numeric", "INVALID_PAYLOAD")
		return
	}

	doc, err := s.rawDoc(collection, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errorJSON(c, http.StatusNotFound, "item not found", "RECORD_NOT_FOUND")
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "load failed", "INTERNAL")
		return
	}
	dataJSON(c, http.StatusOK, s.expand(collection, doc, 0))
}

// handleCreateItem serves POST /items/:collection. The chat message
// sender comes from the access token, never the payload.
func (s *Server) handleCreateItem(c *gin.Context) {
	collection := c.Param("collection")
	if !collections[collection] {
		errorJSON(c, http.StatusNotFound, fmt.Sprintf("unknown collection %q", collection), "COLLECTION_NOT_FOUND")
		return
	}

	var doc map[string]any
	if err := c.ShouldBindJSON(&doc); err != nil {
		errorJSON(c, http.StatusBadRequest, "malformed item payload", "INVALID_PAYLOAD")
		return
	}

	switch collection {
	case "chat_messages":
		doc["sender"] = c.GetString(accountIDKey)
	case "request":
		if _, ok := doc["status"]; !ok {
			doc["status"] = "pending"
		}
		if _, ok := doc["is_reviewed"]; !ok {
			doc["is_reviewed"] = false
		}
	}
	doc["date_created"] = time.Now().UTC().Format(time.RFC3339)

	raw, err := json.Marshal(doc)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "unserializable payload", "INVALID_PAYLOAD")
		return
	}
	item := Item{Collection: collection, Doc: string(raw)}
	if err := s.db.Create(&item).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "create failed", "INTERNAL")
		return
	}

	doc["id"] = item.ID
	dataJSON(c, http.StatusOK, s.expand(collection, doc, 0))
}

// handlePatchItem serves PATCH /items/:collection/:id by merging the
// payload into the stored document.
func (s *Server) handlePatchItem(c *gin.Context) {
	collection := c.Param("collection")
	if !collections[collection] {
		errorJSON(c, http.StatusNotFound, fmt.Sprintf("unknown collection %q", collection), "COLLECTION_NOT_FOUND")
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "item id must be numeric", "INVALID_PAYLOAD")
		return
	}

	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		errorJSON(c, http.StatusBadRequest, "malformed item payload", "INVALID_PAYLOAD")
		return
	}

	var item Item
	err = s.db.Where("collection = ? AND id = ?", collection, id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errorJSON(c, http.StatusNotFound, "item not found", "RECORD_NOT_FOUND")
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "load failed", "INTERNAL")
		return
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(item.Doc), &doc); err != nil {
		errorJSON(c, http.StatusInternalServerError, "corrupt document", "INTERNAL")
		return
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc["date_updated"] = time.Now().UTC().Format(time.RFC3339)
	delete(doc, "id")

	raw, _ := json.Marshal(doc)
	item.Doc = string(raw)
	if err := s.db.Save(&item).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "save failed", "INTERNAL")
		return
	}

	doc["id"] = item.ID
	dataJSON(c, http.StatusOK, s.expand(collection, doc, 0))
}

// collectionDocs loads every raw document in a collection, oldest first.
func (s *Server) collectionDocs(collection string) ([]map[string]any, error) {
	var items []Item
	if err := s.db.Where("collection = ?", collection).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	docs := make([]map[string]any, 0, len(items))
	for _, it := range items {
		var doc map[string]any
		if err := json.Unmarshal([]byte(it.Doc), &doc); err != nil {
			continue
		}
		doc["id"] = it.ID
		docs = append(docs, doc)
	}
	return docs, nil
}

// rawDoc loads one raw document by id.
func (s *Server) rawDoc(collection string, id int) (map[string]any, error) {
	var item Item
	if err := s.db.Where("collection = ? AND id = ?", collection, id).First(&item).Error; err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(item.Doc), &doc); err != nil {
		return nil, err
	}
	doc["id"] = item.ID
	return doc, nil
}

// accountDoc resolves a directory user document by account id.
func (s *Server) accountDoc(id any) map[string]any {
	strID, ok := id.(string)
	if !ok {
		return nil
	}
	var acct Account
	if err := s.db.Where("id = ?", strID).First(&acct).Error; err != nil {
		return nil
	}
	var doc map[string]any
	if json.Unmarshal([]byte(acct.Doc), &doc) != nil {
		return nil
	}
	return doc
}

// expand replaces relation ids with their referenced documents, to the
// depth the SDK's nested field selections need.
func (s *Server) expand(collection string, doc map[string]any, depth int) map[string]any {
	if depth > maxExpandDepth {
		return doc
	}
	if collection == "request" {
		s.expandFiles(doc)
	}
	for field, target := range relations[collection] {
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}
		if _, already := v.(map[string]any); already {
			continue
		}
		switch target {
		case "@account":
			if acct := s.accountDoc(v); acct != nil {
				doc[field] = acct
			}
		case "@ref":
			doc[field] = map[string]any{"id": v}
		default:
			id, ok := asItemID(v)
			if !ok {
				continue
			}
			rel, err := s.rawDoc(target, id)
			if err != nil {
				continue
			}
			doc[field] = s.expand(target, rel, depth+1)
		}
	}
	return doc
}

// expandFiles turns a request's attachment links from bare file ids into
// the file metadata documents the client decodes.
func (s *Server) expandFiles(doc map[string]any) {
	links, ok := doc["files"].([]any)
	if !ok {
		return
	}
	for _, link := range links {
		m, ok := link.(map[string]any)
		if !ok {
			continue
		}
		fileID, ok := m["directus_files_id"].(string)
		if !ok {
			continue
		}
		var stored StoredFile
		if err := s.db.Where("id = ?", fileID).First(&stored).Error; err != nil {
			continue
		}
		m["directus_files_id"] = map[string]any{
			"id":                stored.ID,
			"title":             stored.Filename,
			"filename_download": stored.Filename,
		}
	}
}

// applyFilters keeps documents matching every filter[...][_eq] query key.
func (s *Server) applyFilters(collection string, docs []map[string]any, query map[string][]string) []map[string]any {
	type filter struct {
		path  []string
		value string
	}
	var filters []filter
	for key, vals := range query {
		path, ok := parseFilterKey(key)
		if !ok || len(vals) == 0 {
			continue
		}
		filters = append(filters, filter{path: path, value: vals[0]})
	}
	if len(filters) == 0 {
		return docs
	}

	out := docs[:0]
	for _, doc := range docs {
		match := true
		for _, f := range filters {
			got := s.resolvePath(collection, doc, f.path)
			if got == nil || fmt.Sprint(got) != f.value {
				match = false
				break
			}
		}
		if match {
			out = append(out, doc)
		}
	}
	return out
}

// parseFilterKey decodes "filter[a][b][_eq]" into the path ["a","b"].
// Only equality filters are supported.
func parseFilterKey(key string) ([]string, bool) {
	if !strings.HasPrefix(key, "filter[") {
		return nil, false
	}
	rest := strings.TrimPrefix(key, "filter")
	var segs []string
	for len(rest) > 0 {
		if rest[0] != '[' {
			return nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, false
		}
		segs = append(segs, rest[1:end])
		rest = rest[end+1:]
	}
	if len(segs) < 2 || segs[len(segs)-1] != "_eq" {
		return nil, false
	}
	return segs[:len(segs)-1], true
}

// resolvePath walks a field path through a raw document, following
// relation ids into their referenced documents when the path descends.
func (s *Server) resolvePath(collection string, doc map[string]any, path []string) any {
	cur := doc
	curColl := collection
	for i, seg := range path {
		v, ok := cur[seg]
		if !ok {
			return nil
		}
		if i == len(path)-1 {
			return v
		}
		if m, isMap := v.(map[string]any); isMap {
			cur = m
			curColl = relations[curColl][seg]
			continue
		}
		target := relations[curColl][seg]
		switch target {
		case "", "@ref":
			return nil
		case "@account":
			cur = s.accountDoc(v)
		default:
			id, ok := asItemID(v)
			if !ok {
				return nil
			}
			rel, err := s.rawDoc(target, id)
			if err != nil {
				return nil
			}
			cur = rel
		}
		if cur == nil {
			return nil
		}
		curColl = target
	}
	return nil
}

// applySort orders documents by a single sort key; a leading "-" means
// descending.
func applySort(docs []map[string]any, key string) {
	if key == "" {
		return
	}
	desc := strings.HasPrefix(key, "-")
	field := strings.TrimPrefix(key, "-")

	sort.SliceStable(docs, func(i, j int) bool {
		if desc {
			return lessValue(docs[j][field], docs[i][field])
		}
		return lessValue(docs[i][field], docs[j][field])
	})
}

// lessValue compares two document values: numerically when both are
// numbers, lexicographically otherwise. RFC 3339 timestamps sort
// correctly as strings.
func lessValue(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// asItemID coerces a JSON number (or int) into an item id.
func asItemID(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
