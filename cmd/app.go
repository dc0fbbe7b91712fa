package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"nexus/internal/chunker"
	"nexus/internal/config"
	"nexus/internal/embedder"
	"nexus/internal/index"
	"nexus/internal/llm"
	"nexus/internal/parser"
	"nexus/internal/parser/languages"
	"nexus/internal/prompt"
	"nexus/internal/router"
	"nexus/internal/search"
)

// newRouter builds the provider router from the loaded config. localModel
// overrides the configured Ollama model when non-empty.
func newRouter(localModel string) *router.Router {
	preferLocal, disableDirect := cfg.Routing()
	rc := router.Config{
		PreferLocal: preferLocal,
		Retry: router.RetryPolicy{
			MaxAttempts: cfg.AI.Retry.MaxAttempts,
			BaseDelay:   cfg.AI.Retry.BaseDelay,
			MaxDelay:    cfg.AI.Retry.MaxDelay,
		},
		Logger: logger,
	}

	if key := cfg.APIKey(config.ProviderClaude); key != "" && !disableDirect {
		p := cfg.Provider(config.ProviderClaude)
		rc.Direct = &router.Candidate{
			Profile: router.DirectProfile(),
			Backend: llm.NewClaude(p.Endpoint, key, p.Model),
			APIKey:  key,
		}
	}

	ollama := newOllama(localModel)
	rc.Local = &router.Candidate{
		Profile:   router.LocalProfile(),
		Backend:   ollama,
		Reachable: ollama.Reachable,
	}

	rc.Proxy = &router.Candidate{
		Profile: router.ProxyProfile(),
		Backend: llm.NewProxy(cfg.Provider(config.ProviderProxy).Endpoint, Version),
	}
	return router.New(rc)
}

// sharedRouter is built once per process so rate limits hold across every
// request a command makes.
var sharedRouter = sync.OnceValue(func() *router.Router { return newRouter("") })

func newOllama(model string) *llm.OllamaChat {
	p := cfg.Provider(config.ProviderOllama)
	if model == "" {
		model = p.Model
	}
	return llm.NewOllamaChat(p.Endpoint, model)
}

// newEmbedder returns the configured representation function.
func newEmbedder() embedder.Embedder {
	e := cfg.Index.Embedding
	if e.Backend == "ollama" {
		inner := embedder.NewOllamaEmbedder(cfg.Provider(config.ProviderOllama).Endpoint, e.Model, e.Dimension)
		return embedder.NewCached(inner, embedder.DefaultCacheSize)
	}
	return embedder.NewHashEmbedder(e.Dimension)
}

func indexConfig(root string, r *router.Router) index.Config {
	return index.Config{
		Root:        root,
		Embedder:    newEmbedder(),
		Chunker:     chunker.Options{MinNestedBytes: cfg.Index.MinNestedBytes},
		Workers:     cfg.Index.Workers,
		Excludes:    cfg.Index.ExcludePatterns,
		MaxFileSize: cfg.MaxFileSize(),
		Router:      r,
		Logger:      logger,
	}
}

func searchOptions() search.Options {
	return search.Options{
		ExactThreshold: cfg.Index.ExactThreshold,
		Oversample:     cfg.Index.Oversample,
		Logger:         logger,
	}
}

// openIndex opens the existing index for the repository containing the
// working directory. It fails when no index has been built yet.
func openIndex(ctx context.Context) (*index.Indexer, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(index.DefaultDir(root), index.DBFile)); errors.Is(err, os.ErrNotExist) {
		return nil, &search.SearchError{Kind: search.StoreUnavailable, Err: fmt.Errorf("no index in %s", root)}
	}
	return index.Open(ctx, indexConfig(root, nil))
}

var sourceParser = parser.New(languages.NewRegistry())

// readSource loads a file for a prompt, detecting its language from the
// extension.
func readSource(path string) (prompt.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return prompt.File{}, err
	}
	lang := prompt.Normalize(sourceParser.Registry().LanguageName(path))
	if lang == "" {
		lang = prompt.Normalize(strings.TrimPrefix(filepath.Ext(path), "."))
	}
	return prompt.File{Path: path, Language: lang, Content: string(data)}, nil
}

// readSources expands directories and reads every supported file in them.
func readSources(paths []string) ([]prompt.File, error) {
	var files []prompt.File
	exts := sourceParser.Registry().Extensions()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			f, err := readSource(p)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !exts[strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))] {
				return nil
			}
			f, err := readSource(path)
			if err != nil {
				return err
			}
			files = append(files, f)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported source files in %s", strings.Join(paths, ", "))
	}
	return files, nil
}

// symbols lists the named functions and classes declared in f.
func symbols(ctx context.Context, f prompt.File) []string {
	tree, err := sourceParser.Parse(ctx, f.Path, []byte(f.Content))
	if tree == nil {
		logger.Debug("symbols.parse.failed", "path", f.Path, "err", err)
		return nil
	}
	var names []string
	tree.Walk(func(n *parser.Node, depth int) bool {
		if n.Name != "" && (n.Kind == parser.KindFunction || n.Kind == parser.KindClass) {
			names = append(names, fmt.Sprintf("%s %s (line %d)", n.Kind, n.Name, n.StartLine))
		}
		return true
	})
	return names
}

// stream runs req through the router and prints fragments as they arrive.
func stream(ctx context.Context, req llm.Request) (*router.Response, error) {
	return streamWith(ctx, sharedRouter(), req)
}

func streamWith(ctx context.Context, r *router.Router, req llm.Request) (*router.Response, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.Provider(config.ProviderClaude).MaxTokens
	}
	s := r.Stream(ctx, req)
	defer s.Close()
	for s.Next() {
		f := s.Fragment()
		if f.Reset {
			out.Restart(f.Provider)
		}
		out.Fragment(f.Text)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	out.Fragment("\n")
	resp := s.Response()
	logger.Info("request.completed", "id", resp.ID, "provider", resp.Provider, "attempts", resp.Attempts, "fell_back", resp.FellBack, "tokens", resp.Tokens)
	return resp, nil
}

// complete runs req without printing the answer.
func complete(ctx context.Context, req llm.Request) (*router.Response, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.Provider(config.ProviderClaude).MaxTokens
	}
	r := sharedRouter()
	provider, err := r.Select(ctx, req)
	if err != nil {
		return nil, err
	}
	out.Status("Thinking with %s...", provider)
	resp, err := r.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Info("request.completed", "id", resp.ID, "provider", resp.Provider, "attempts", resp.Attempts, "fell_back", resp.FellBack, "tokens", resp.Tokens)
	return resp, nil
}

// writeCode extracts the code block from text and writes it to path.
func writeCode(path, text, lang string) error {
	code := prompt.ExtractCode(text, lang)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	out.Success("Wrote %s (%d lines)", path, strings.Count(code, "\n"))
	return nil
}

var stdin = bufio.NewReader(os.Stdin)

// readLine prints question and reads one line from stdin.
func readLine(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(out.Out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(out.Out, "%s: ", question)
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// choose asks the user to pick one of options and returns its index.
func choose(question string, options []string, def int) (int, error) {
	fmt.Fprintln(out.Out, question)
	for i, o := range options {
		marker := " "
		if i == def {
			marker = "*"
		}
		fmt.Fprintf(out.Out, "  %s %d) %s\n", marker, i+1, o)
	}
	for {
		answer, err := readLine("Choice", strconv.Itoa(def+1))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		out.Warn("enter a number between 1 and %d", len(options))
	}
}
