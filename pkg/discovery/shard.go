package discovery

import (
	"fmt"
	"regexp"
)

var shardRe = regexp.MustCompile(`^(.+)-\d{5}-of-\d{5}(\..+)$`)

type shardKey struct {
	base string
	ext  string
}

// shardGroup accumulates the files belonging to one sharded model.
type shardGroup struct {
	dir       string
	firstFile string
	count     int
	totalSize int64
}

// groupShards collapses sharded-file entries sharing a (base, ext) key
// within the same directory into one synthetic record each. Entries that
// don't match the shard pattern pass through untouched. A group of exactly
// one matching file is treated as non-sharded, per the boundary behavior.
func groupShards(files []classifiedFile) []classifiedFile {
	groups := make(map[string]*shardGroup)
	groupOrder := make([]string, 0)
	var passthrough []classifiedFile

	for _, f := range files {
		m := shardRe.FindStringSubmatch(f.name)
		if m == nil {
			passthrough = append(passthrough, f)
			continue
		}
		key := f.dir + "|" + m[1] + "|" + m[2]
		g, ok := groups[key]
		if !ok {
			g = &shardGroup{dir: f.dir, firstFile: f.name}
			groups[key] = g
			groupOrder = append(groupOrder, key)
		}
		g.count++
		g.totalSize += f.size
		if f.name < g.firstFile {
			g.firstFile = f.name
		}
	}

	result := passthrough
	for _, key := range groupOrder {
		g := groups[key]
		if g.count == 1 {
			result = append(result, classifiedFile{
				dir:  g.dir,
				name: g.firstFile,
				path: g.dir + "/" + g.firstFile,
				size: g.totalSize,
			})
			continue
		}
		displayPath := fmt.Sprintf("%s (+%d more files)", g.firstFile, g.count-1)
		result = append(result, classifiedFile{
			dir:       g.dir,
			name:      dirBaseName(g.dir),
			path:      displayPath,
			size:      g.totalSize,
			isSharded: true,
		})
	}
	return result
}

func dirBaseName(dir string) string {
	// Last path component, independent of OS separator style.
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' || dir[i] == '\\' {
			return dir[i+1:]
		}
	}
	return dir
}
