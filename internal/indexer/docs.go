package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"onemcp/internal/documents"
	"onemcp/internal/graph"
)

// indexDocuments runs the Markdown corpus through the semantic chunker,
// matches chunks against the entities harvested from the OpenAPI stage, and
// persists one DocumentationNode per chunk plus a MENTIONS edge per matched
// entity.
func (c *Coordinator) indexDocuments(ctx context.Context, hb *Handbook, entities []graph.Node) (int, int, error) {
	if len(hb.DocFiles) == 0 {
		return 0, 0, nil
	}

	type docFile struct {
		path    string
		content string
	}
	var files []docFile
	totalTokens := 0
	tok := documents.HeuristicTokenizer{}
	for _, path := range hb.DocFiles {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("doc_read_skipped")
			continue
		}
		files = append(files, docFile{path: path, content: string(b)})
		totalTokens += tok.Count(string(b))
	}

	md := c.Config.Indexing.Markdown
	var params documents.Params
	if md.AdaptiveEnabled() {
		params = documents.AdaptiveParams(totalTokens, len(entities))
	} else {
		params = documents.FixedParams(md.WindowSizeTokens, md.OverlapTokens)
	}
	chunker := documents.Chunker{Params: params, Tok: tok}
	// the documentation pass always chunks unless the markdown override
	// explicitly disables it; the global chunking default only gates the
	// LLM-driven OpenAPI path
	chunkingOn := true
	if c.Config.Indexing.Chunking.Markdown.Enabled != nil {
		chunkingOn = *c.Config.Indexing.Chunking.Markdown.Enabled
	}

	matcher := newEntityMatcher(entities)
	usedKeys := map[string]bool{}
	nodes, edges := 0, 0

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nodes, edges, err
		}
		rel, _ := filepath.Rel(hb.Root, f.path)
		if rel == "" {
			rel = f.path
		}
		var chunks []documents.Chunk
		if chunkingOn {
			chunks = chunker.ChunkFile(rel, f.content)
		} else if strings.TrimSpace(f.content) != "" {
			// chunking disabled: the whole file is one documentation node
			chunks = []documents.Chunk{{FileName: rel, Content: f.content, ContentFormat: documents.FormatMarkdown}}
		}

		for _, chunk := range chunks {
			if strings.TrimSpace(chunk.Content) == "" {
				continue
			}
			title := chunkTitle(chunk, rel)
			key := graph.Key(graph.KindDocumentation, title)
			if usedKeys[key] && chunk.ID != "" {
				key = graph.Key(graph.KindDocumentation, title+"_"+chunk.ID)
			}
			usedKeys[key] = true

			matched := matcher.match(chunk.Content)
			node := graph.Node{
				Key:         key,
				Kind:        graph.KindDocumentation,
				Title:       title,
				Content:     chunk.Content,
				DocType:     classifyDocType(rel, chunk.SectionPath),
				SourceFile:  rel,
				RelatedKeys: matched,
				Metadata:    map[string]string{"chunkId": chunk.ID, "section": strings.Join(chunk.SectionPath, " / ")},
			}
			if err := c.Driver.StoreNode(ctx, node); err != nil {
				return nodes, edges, err
			}
			nodes++
			for _, entityKey := range matched {
				stored, err := c.Driver.StoreEdge(ctx, graph.Edge{
					FromKey: key,
					ToKey:   entityKey,
					Type:    graph.EdgeMentions,
				})
				if err != nil {
					return nodes, edges, err
				}
				if stored {
					edges++
				}
			}
		}
	}
	log.Info().Int("doc_nodes", nodes).Int("mention_edges", edges).Msg("index_documents_done")
	return nodes, edges, nil
}

func chunkTitle(chunk documents.Chunk, fileName string) string {
	if len(chunk.SectionPath) > 0 {
		return chunk.SectionPath[len(chunk.SectionPath)-1]
	}
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func classifyDocType(fileName string, sectionPath []string) string {
	probe := strings.ToLower(fileName + " " + strings.Join(sectionPath, " "))
	switch {
	case strings.Contains(probe, "how"), strings.Contains(probe, "guide"), strings.Contains(probe, "tutorial"):
		return "howto"
	case strings.Contains(probe, "reference"), strings.Contains(probe, "api"):
		return "reference"
	default:
		return "concept"
	}
}

// entityMatcher does the keyword and alias pass that links documentation
// chunks back to entities.
type entityMatcher struct {
	aliases []aliasEntry
}

type aliasEntry struct {
	alias string
	key   string
}

func newEntityMatcher(entities []graph.Node) *entityMatcher {
	m := &entityMatcher{}
	seen := map[string]bool{}
	add := func(alias, key string) {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if len(alias) < 3 || seen[alias+"\x00"+key] {
			return
		}
		seen[alias+"\x00"+key] = true
		m.aliases = append(m.aliases, aliasEntry{alias: alias, key: key})
	}
	for _, e := range entities {
		if e.Key == "" || e.Name == "" {
			continue
		}
		add(e.Name, e.Key)
		add(e.Name+"s", e.Key)
		add(strings.ReplaceAll(graph.Slug(e.Name), "_", " "), e.Key)
	}
	return m
}

// match returns the matched entity keys in first-seen order.
func (m *entityMatcher) match(text string) []string {
	if len(m.aliases) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	var out []string
	matched := map[string]bool{}
	for _, a := range m.aliases {
		if matched[a.key] {
			continue
		}
		if containsWord(lower, a.alias) {
			matched[a.key] = true
			out = append(out, a.key)
		}
	}
	return out
}

// containsWord reports whether needle occurs in haystack on word boundaries.
func containsWord(haystack, needle string) bool {
	for start := 0; ; {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isWordChar(haystack[i-1])
		afterIdx := i + len(needle)
		after := afterIdx >= len(haystack) || !isWordChar(haystack[afterIdx])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
