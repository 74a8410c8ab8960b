package i18n

// catalog 文案目录，HTML 格式
var catalog = map[string]map[string]string{
	"en": {
		"welcome":               "<b>🎉 Welcome to the Video Downloader Bot!</b>\nSend a video URL to download it instantly.\n\n<b>Features</b>:\n- Quality selection\n- Multiple formats\n- Audio-only downloads\n- And more!",
		"help":                  "<b>ℹ️ Help</b>\n1. <b>Send a URL</b>: paste a video link to start downloading.\n2. <b>Settings</b>: use /settings to customize.\n3. <b>Cancel</b>: press the cancel button under a progress message.\n\n<b>Supported platforms</b>: %s\n\n<b>Commands</b>:\n/start - start the bot\n/settings - preferences\n/stats - bot statistics\n/users - total users\n/info - your usage\n/setthumbnail - custom thumbnail\n/delthumbnail - remove thumbnail\n/about - about this bot\n/help - this message",
		"admin_help":            "\n\n<b>Admin</b>: /broadcast &lt;text&gt;, /ban &lt;id&gt;, /unban &lt;id&gt;, /setlimit &lt;n&gt;, /restart",
		"about":                 "<b>🌟 About Video Downloader Bot</b>\nPurpose: <b>download videos easily</b>\nSupports: <b>YouTube, Instagram, X, and more!</b>\nUpdates: %s",
		"join_channels":         "Please join our channels to use this bot:",
		"join_button":           "Join %s",
		"i_have_joined":         "✅ I have joined",
		"join_all_channels":     "Please join all channels first.",
		"invalid_url":           "No valid URL found in your message.",
		"unsupported_platform":  "Unsupported platform: %s",
		"processing_videos":     "Processing %d video(s)...",
		"processing_request":    "🔍 Processing your request...",
		"queued":                "⏳ Queued, position %d. Your download will start automatically.",
		"phase_fetching":        "📥 Downloading",
		"phase_post_processing": "⚙️ Processing",
		"phase_uploading":       "📤 Uploading",
		"progress_detail":       "%s of %s\nSpeed: %s/s\nETA: %s",
		"cancel":                "❌ Cancel",
		"download_cancelled":    "🚫 Download cancelled.",
		"nothing_to_cancel":     "Nothing to cancel.",
		"not_your_task":         "Only the user who started this download can cancel it.",
		"nothing_to_skip":       "Nothing is waiting for your reply.",
		"pick_quality_first":    "Pick a quality from the buttons first.",
		"choose_quality":        "Choose a quality for <b>%s</b>:",
		"edit_title_prompt":     "Current title: <b>%s</b>. Reply with a new title or /skip to keep it.",
		"rename_prompt":         "Current file name: <b>%s</b>. Reply with a new name or /skip to keep it.",
		"too_large":             "Video too large (<b>%.2fMB</b>). Max is <b>%dMB</b>.",
		"uploading_file":        "Uploading <b>%s</b> (<b>%.2fMB</b>)...",
		"done":                  "✅ Done in %s.",
		"failed":                "❌ Failed: %s",
		"expired":               "⌛ No reply received, request cancelled.",
		"superseded":            "This prompt was replaced by a newer request.",
		"duplicate":             "This link is already being processed.",
		"banned":                "🚫 You are banned from using this bot.",
		"no_formats":            "No downloadable formats found.",
		"preview":               "Preview",
		"bot_stats":             "<b>📊 Bot statistics</b>\nTotal videos: %d\nTotal size: %.2f MB\nTotal time: %.2f s\nActive downloads: %d\nQueued: %d",
		"total_users":           "Total users: %d",
		"info":                  "<b>👤 Your usage</b>\nVideos: %d\nTotal size: %.2f MB\nLast active: %s",
		"settings_menu":         "<b>⚙️ Settings</b>\nChoose an option:",
		"select_language":       "Select your language:",
		"language_updated":      "Language updated.",
		"select_quality":        "Select the default quality:",
		"quality_updated":       "Default quality updated.",
		"select_format":         "Select the upload format:",
		"format_updated":        "Upload format updated.",
		"toggle_updated":        "%s: %s",
		"on":                    "On",
		"off":                   "Off",
		"ask":                   "Ask",
		"set_language":          "🌐 Language",
		"set_compression":       "🗜️ Compression",
		"set_quality":           "🎥 Default quality",
		"set_format":            "📦 Upload format",
		"set_metadata":          "✏️ Edit title",
		"set_rename":            "📝 Rename file",
		"set_multi_audio":       "🎧 Multi-audio",
		"set_subtitles":         "💬 Burn subtitles",
		"set_send_subtitle":     "📄 Send subtitle file",
		"set_send_thumbnail":    "🖼️ Send thumbnail",
		"set_preview":           "🎬 Send preview",
		"close":                 "❌ Close",
		"back":                  "⬅️ Back",
		"quality_best":          "Best",
		"quality_audio":         "Audio only",
		"thumbnail_prompt":      "Send me a photo to use as your thumbnail.",
		"thumbnail_saved":       "✅ Custom thumbnail saved.",
		"thumbnail_deleted":     "🗑️ Custom thumbnail removed.",
		"no_thumbnail":          "You have no custom thumbnail.",
		"admin_only":            "This command is for admins only.",
		"broadcast_usage":       "Usage: /broadcast &lt;text&gt;",
		"broadcast_done":        "Broadcast sent to %d users (%d failed).",
		"ban_usage":             "Usage: /ban &lt;user_id&gt;",
		"unban_usage":           "Usage: /unban &lt;user_id&gt;",
		"banned_user":           "User %d banned.",
		"unbanned_user":         "User %d unbanned.",
		"limit_usage":           "Usage: /setlimit &lt;n&gt; (current %d)",
		"limit_set":             "Concurrency limit set to %d.",
		"restarting":            "♻️ Restarting...",
		"error_occurred":        "An error occurred: %s",
	},
	"es": {
		"welcome":               "<b>🎉 ¡Bienvenido al Bot de Descarga de Videos!</b>\nEnvía una URL de video para descargarla al instante.\n\n<b>Funciones</b>:\n- Selección de calidad\n- Múltiples formatos\n- Solo audio\n- ¡Y más!",
		"help":                  "<b>ℹ️ Ayuda</b>\n1. <b>Enviar URL</b>: pega un enlace de video para comenzar.\n2. <b>Ajustes</b>: usa /settings para personalizar.\n3. <b>Cancelar</b>: pulsa el botón cancelar bajo el mensaje de progreso.\n\n<b>Plataformas</b>: %s\n\n<b>Comandos</b>:\n/start - iniciar\n/settings - ajustes\n/stats - estadísticas\n/users - usuarios\n/info - tu uso\n/setthumbnail - miniatura propia\n/delthumbnail - quitar miniatura\n/about - acerca de\n/help - este mensaje",
		"about":                 "<b>🌟 Acerca del Bot de Descarga de Videos</b>\nPropósito: <b>descargar videos fácilmente</b>\nSoporta: <b>YouTube, Instagram, X y más!</b>\nNovedades: %s",
		"join_channels":         "Únete a nuestros canales para usar este bot:",
		"join_button":           "Unirse a %s",
		"i_have_joined":         "✅ Ya me uní",
		"join_all_channels":     "Primero únete a todos los canales.",
		"invalid_url":           "No se encontró ninguna URL válida.",
		"unsupported_platform":  "Plataforma no soportada: %s",
		"processing_videos":     "Procesando %d video(s)...",
		"processing_request":    "🔍 Procesando tu solicitud...",
		"queued":                "⏳ En cola, posición %d. La descarga empezará automáticamente.",
		"phase_fetching":        "📥 Descargando",
		"phase_post_processing": "⚙️ Procesando",
		"phase_uploading":       "📤 Subiendo",
		"progress_detail":       "%s de %s\nVelocidad: %s/s\nRestante: %s",
		"cancel":                "❌ Cancelar",
		"download_cancelled":    "🚫 Descarga cancelada.",
		"nothing_to_cancel":     "No hay nada que cancelar.",
		"not_your_task":         "Solo quien inició esta descarga puede cancelarla.",
		"nothing_to_skip":       "No hay nada esperando tu respuesta.",
		"choose_quality":        "Elige una calidad para <b>%s</b>:",
		"edit_title_prompt":     "Título actual: <b>%s</b>. Responde con un nuevo título o /skip para mantenerlo.",
		"rename_prompt":         "Nombre actual: <b>%s</b>. Responde con un nuevo nombre o /skip para mantenerlo.",
		"too_large":             "Video demasiado grande (<b>%.2fMB</b>). Máximo <b>%dMB</b>.",
		"uploading_file":        "Subiendo <b>%s</b> (<b>%.2fMB</b>)...",
		"done":                  "✅ Listo en %s.",
		"failed":                "❌ Error: %s",
		"expired":               "⌛ Sin respuesta, solicitud cancelada.",
		"duplicate":             "Este enlace ya se está procesando.",
		"banned":                "🚫 Tienes prohibido usar este bot.",
		"preview":               "Vista previa",
		"settings_menu":         "<b>⚙️ Ajustes</b>\nElige una opción:",
		"select_language":       "Selecciona tu idioma:",
		"language_updated":      "Idioma actualizado.",
		"select_quality":        "Selecciona la calidad predeterminada:",
		"quality_updated":       "Calidad predeterminada actualizada.",
		"on":                    "Sí",
		"off":                   "No",
		"set_language":          "🌐 Idioma",
		"set_compression":       "🗜️ Compresión",
		"set_quality":           "🎥 Calidad",
		"close":                 "❌ Cerrar",
		"back":                  "⬅️ Atrás",
		"error_occurred":        "Ocurrió un error: %s",
	},
	"hi": {
		"welcome":               "<b>🎉 वीडियो डाउनलोडर बॉट में आपका स्वागत है!</b>\nडाउनलोड करने के लिए वीडियो का लिंक भेजें।",
		"join_channels":         "इस बॉट का उपयोग करने के लिए हमारे चैनल जॉइन करें:",
		"i_have_joined":         "✅ मैंने जॉइन कर लिया",
		"invalid_url":           "आपके संदेश में कोई मान्य लिंक नहीं मिला।",
		"processing_request":    "🔍 आपका अनुरोध संसाधित हो रहा है...",
		"queued":                "⏳ कतार में, स्थान %d।",
		"phase_fetching":        "📥 डाउनलोड हो रहा है",
		"phase_post_processing": "⚙️ प्रोसेस हो रहा है",
		"phase_uploading":       "📤 अपलोड हो रहा है",
		"cancel":                "❌ रद्द करें",
		"download_cancelled":    "🚫 डाउनलोड रद्द किया गया।",
		"nothing_to_cancel":     "रद्द करने के लिए कुछ नहीं है।",
		"choose_quality":        "<b>%s</b> के लिए गुणवत्ता चुनें:",
		"done":                  "✅ %s में पूरा हुआ।",
		"failed":                "❌ विफल: %s",
		"settings_menu":         "<b>⚙️ सेटिंग्स</b>\nएक विकल्प चुनें:",
		"select_language":       "अपनी भाषा चुनें:",
		"language_updated":      "भाषा अपडेट की गई।",
		"on":                    "चालू",
		"off":                   "बंद",
		"set_language":          "🌐 भाषा",
		"close":                 "❌ बंद करें",
		"back":                  "⬅️ वापस",
	},
}
