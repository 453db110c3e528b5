package respond

// Turn-level prompts and failure messages. Components hand errors up as
// values; these strings are the only Korean the user sees for them.
const (
	MsgEmptyQuestion  = "질문을 입력해주세요."
	MsgNoFileData     = "분석할 파일 데이터가 없습니다. 파일을 먼저 업로드해주세요."
	MsgFileFailure    = "파일을 분석하는 중 문제가 발생했습니다. 잠시 후 다시 시도해주세요."
	MsgBackendFailure = "데이터를 불러오는 중 문제가 발생했습니다. 잠시 후 다시 시도해주세요."
)
