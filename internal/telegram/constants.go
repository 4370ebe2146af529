package telegram

import "time"

const (
	// telegramMaxMessageLen is the safe limit for one outgoing message.
	telegramMaxMessageLen = 4000

	// inlineMaxResults is the number of articles returned for one inline query.
	inlineMaxResults = 20

	dedupeMaxSize = 5000

	defaultPollTimeout = 30 * time.Second

	// handlerTimeout bounds the work done for one update.
	handlerTimeout = 30 * time.Second
)

// Replies shown to chat members.
const (
	textWelcome        = "我是一个可以用来搜索群消息的机器人。注意，消息被<b>明文</b>保存在数据库中。可以使用 /toggle_my_searchability 来切换是否记录你的消息。"
	textNoResults      = "未找到相关消息。"
	textSearchFailed   = "发生错误，无法搜索消息。请检查日志。"
	textArchiveFailed  = "发生错误，消息未被记录。请检查日志。"
	textToggleFailed   = "发生错误，设置未被保存。请检查日志。"
	textToggleEnabled  = "您的消息记录 已启用"
	textToggleDisabled = "您的消息记录 已禁用"
	textQueryUsage     = "用法：/q <关键词>"
	textRateLimited    = "搜索过于频繁，请稍后再试。"
	textHelp           = "可用命令：\n" +
		"/q <关键词> 搜索本群消息\n" +
		"/toggle_my_searchability 切换我的消息是否可被搜索\n" +
		"/help 显示此帮助"
)
