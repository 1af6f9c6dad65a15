// Package nlquery translates free natural-language phrases into structured
// search criteria using ordered keyword rule tables and date/size patterns.
// Translation never fails; unmatched text degrades to free-text terms.
package nlquery

// Rule maps a surface pattern to a field filter. Rules are loaded once at
// construction as an ordered, immutable list: overlapping matches resolve by
// longest pattern first, then by insertion order.
type Rule struct {
	Pattern string
	Field   string
	Value   string
}

// DefaultRules returns the built-in keyword tables. Emotion rules come first,
// then technical, category, and file-type rules; ties between tables resolve
// by this insertion order. Patterns mix English and Chinese surface forms,
// mirroring the archives this engine was built for.
func DefaultRules() []Rule {
	var rules []Rule
	add := func(field, value string, patterns ...string) {
		for _, p := range patterns {
			rules = append(rules, Rule{Pattern: p, Field: field, Value: value})
		}
	}

	// Emotion table.
	add("mood", "happy", "happy", "joyful", "cheerful", "快樂", "開心", "高興")
	add("mood", "sad", "sad", "gloomy", "sorrowful", "悲傷", "難過")
	add("mood", "calm", "calm", "peaceful", "serene", "寧靜", "平靜")
	add("mood", "warm", "heartwarming", "cozy", "溫馨", "溫暖")
	add("mood", "nostalgic", "nostalgic", "vintage", "retro", "懷舊", "復古")
	add("mood", "tense", "tense", "thrilling", "intense", "緊張", "刺激")
	add("mood", "epic", "epic", "majestic", "grand", "史詩", "壯觀")
	add("mood", "mysterious", "mysterious", "eerie", "神秘", "詭異")
	add("mood", "romantic", "romantic", "浪漫", "愛情")

	// Technical table: shot types, lighting, music genres, vocals.
	add("shot_type", "close-up", "close-up", "closeup", "macro", "特寫", "近景")
	add("shot_type", "medium", "medium shot", "中景", "半身")
	add("shot_type", "wide", "wide shot", "panorama", "全景", "廣角")
	add("shot_type", "aerial", "aerial", "bird's-eye", "鳥瞰", "空拍")
	add("shot_type", "low-angle", "low angle", "仰拍", "仰視")
	add("lighting_style", "natural", "natural light", "daylight", "自然光", "日光")
	add("lighting_style", "studio", "studio light", "攝影棚", "人工光")
	add("lighting_style", "backlight", "backlight", "rim light", "背光", "輪廓光")
	add("lighting_style", "soft", "soft light", "柔光")
	add("lighting_style", "hard", "hard light", "硬光")
	add("music_genre", "classical", "classical", "orchestral", "古典", "交響")
	add("music_genre", "jazz", "jazz", "blues", "爵士", "藍調")
	add("music_genre", "rock", "rock", "metal", "搖滾", "重金屬")
	add("music_genre", "pop", "pop", "流行", "主流")
	add("music_genre", "electronic", "electronic", "techno", "電子", "合成")
	add("vocal_style", "male", "male voice", "男聲")
	add("vocal_style", "female", "female voice", "女聲")
	add("vocal_style", "choir", "choir", "合唱")
	add("vocal_style", "narration", "narration", "voiceover", "旁白", "解說")

	// Category table.
	add("category", "people", "portrait", "people", "person", "人物", "人像")
	add("category", "nature", "nature", "landscape", "scenery", "自然", "風景")
	add("category", "animals", "animals", "animal", "pets", "pet", "動物", "寵物")
	add("category", "places", "buildings", "building", "city", "street", "建築", "城市", "街道")
	add("category", "objects", "objects", "object", "food", "vehicle", "物件", "食物")
	add("category", "events", "events", "event", "festival", "concert", "meeting", "事件", "活動", "慶典")
	add("category", "art", "art", "painting", "sculpture", "藝術", "繪畫", "雕塑")

	// File-type table.
	add("filetype", "image", "photos", "photo", "pictures", "picture", "images", "image", "圖片", "照片", "相片")
	add("filetype", "video", "videos", "video", "movies", "movie", "clips", "clip", "footage", "影片", "視頻", "錄影")
	add("filetype", "audio", "audio", "recordings", "recording", "songs", "song", "music", "音訊", "音樂", "錄音", "歌曲")

	return rules
}

// Vocabulary returns the distinct surface patterns of the default rules, for
// use as a suggestion keyword list.
func Vocabulary() []string {
	rules := DefaultRules()
	seen := make(map[string]bool, len(rules))
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if !seen[r.Pattern] {
			seen[r.Pattern] = true
			out = append(out, r.Pattern)
		}
	}
	return out
}
